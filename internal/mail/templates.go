package mail

import "fmt"

func VerificationLinkMessage(url string) (subject, textBody, htmlBody string) {
	subject = "Email Verification"
	textBody = fmt.Sprintf("Please verify your email using the link below:\n%s\n\nIf you did not request this email, please ignore it.", url)
	htmlBody = fmt.Sprintf(`<html><body><p>Please verify your email using the link below:</p><a href="%s">%s</a><p>If you did not request this email, please ignore it.</p></body></html>`, url, url)
	return subject, textBody, htmlBody
}

func VerificationCodeMessage(code string) (subject, textBody string) {
	subject = "Verification Code"
	textBody = fmt.Sprintf("Your verification code is: %s", code)
	return subject, textBody
}
