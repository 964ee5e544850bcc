package errors

import "fmt"

// AuthCode classifies an authentication rejection
type AuthCode int32

const (
	AuthOK                    AuthCode = 0
	AuthInvalidTenantMetadata AuthCode = 1
	AuthInvalidTokenMetadata  AuthCode = 2
)

func (c AuthCode) String() string {
	switch c {
	case AuthOK:
		return "ok"
	case AuthInvalidTenantMetadata:
		return "invalid_tenant_metadata"
	case AuthInvalidTokenMetadata:
		return "invalid_token_metadata"
	default:
		return fmt.Sprintf("auth_code(%d)", int32(c))
	}
}

// ValidAuthCode reports whether c is one of the known codes
func ValidAuthCode(c AuthCode) bool {
	return c >= AuthOK && c <= AuthInvalidTokenMetadata
}

// AuthFailure is returned when the cluster rejects the tenant or token
type AuthFailure struct {
	Code AuthCode
	Msg  string
}

func (e *AuthFailure) Error() string {
	return fmt.Sprintf("authentication failed (%s): %s", e.Code, e.Msg)
}

func (e *AuthFailure) Kind() Kind { return KindAuth }
func (e *AuthFailure) failure()   {}
