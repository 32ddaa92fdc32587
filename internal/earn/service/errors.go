package service

import "fmt"

// Rejection codes the clients key their behaviour off. Cooldown handling in
// particular must never rely on message text.
const (
	CodeCooldownActive = "cooldown_active"
	CodeDailyCap       = "daily_cap_reached"
	CodeDeviceCap      = "device_cap_reached"
	CodeInvalidRequest = "invalid_request"
	CodeInvalidSession = "invalid_session"
)

// Rejection is a policy-level refusal with a machine-readable code. The HTTP
// layer maps it to a {"detail", "code"} error body.
type Rejection struct {
	Status int
	Code   string
	Detail string
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func reject(status int, code, detail string) *Rejection {
	return &Rejection{Status: status, Code: code, Detail: detail}
}
