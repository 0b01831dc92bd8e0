package operations

import "github.com/next-trace/scg-rpc-proxy/contract/rpc"

// AuthUser operations are served by the cognito manager.
type AuthUser string

const (
	CreateAuthUser         AuthUser = "CREATE_AUTH_USER"
	LoginAuthUser          AuthUser = "LOGIN_AUTH_USER"
	LoginUserCustom        AuthUser = "LOGIN_USER_CUSTOM"
	FindTokenForCode       AuthUser = "FIND_TOKEN_FOR_CODE"
	LogoutAuthUser         AuthUser = "LOGOUT_AUTH_USER"
	ConfirmSignUp          AuthUser = "CONFIG_SIGN_UP"
	ConfirmRemoveUser      AuthUser = "CONFIG_REMOVE_USER"
	ResendConfirmationCode AuthUser = "CONFIG_RESEND_CONFIRMATION_CODE_USER"
	RefreshAuthUser        AuthUser = "REFRESH_AUTH_USER"
	FindAuthUser           AuthUser = "FIND_AUTH_USER"
	FindAuthUserByID       AuthUser = "FIND_BY_ID_AUTH_USER"
	FindOneAuthUser        AuthUser = "FIND_ONE_AUTH_USER"
	UpdateAuthUser         AuthUser = "UPDATE_AUTH_USER"
	DeleteAuthUser         AuthUser = "DELETE_AUTH_USER"
)

// AuthUsers lists every AuthUser operation.
func AuthUsers() []AuthUser {
	return []AuthUser{
		CreateAuthUser,
		LoginAuthUser,
		LoginUserCustom,
		FindTokenForCode,
		LogoutAuthUser,
		ConfirmSignUp,
		ConfirmRemoveUser,
		ResendConfirmationCode,
		RefreshAuthUser,
		FindAuthUser,
		FindAuthUserByID,
		FindOneAuthUser,
		UpdateAuthUser,
		DeleteAuthUser,
	}
}

func (o AuthUser) String() string { return string(o) }

func (AuthUser) Destination() rpc.Destination { return CognitoQueue }

func (o AuthUser) Valid() bool { return contains(AuthUsers(), o) }
