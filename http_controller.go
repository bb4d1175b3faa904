package auth

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

// RegisterAuthRoutes mounts the auth endpoints on app. Callers usually pass
// a group created with the configured route prefix.
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)
	guard := controller.Auther.ProtectedRoute()

	app.Post(controller.Routes.Login, controller.LoginPost).Name("auth.login")
	app.Get(controller.Routes.Verify, guard, controller.Verify).Name("auth.verify")
	app.Post(controller.Routes.Logout, controller.LogOut).Name("auth.logout")
	app.Put(controller.Routes.ChangePassword, guard, controller.ChangePassword).Name("auth.change-password")
	app.Put(controller.Routes.ChangeEmail, guard, controller.ChangeEmail).Name("auth.change-email")

	return controller
}

type AuthControllerRoutes struct {
	Login          string
	Verify         string
	Logout         string
	ChangePassword string
	ChangeEmail    string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	ContextKey   string
	ErrorHandler fiber.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerAuther sets the HTTPAuthenticator, required
func WithControllerAuther(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

// WithControllerLogger sets the logger
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerDebug dumps decoded payloads, passwords are masked
func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// WithControllerContextKey sets the locals key the guard stores claims under
func WithControllerContextKey(key string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger(),
		ContextKey: DefaultContextKey,
		Routes: &AuthControllerRoutes{
			Login:          "/login",
			Verify:         "/verify",
			Logout:         "/logout",
			ChangePassword: "/change-password",
			ChangeEmail:    "/change-email",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = FiberErrorHandler(c.Logger)
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	return c
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the email
func (r LoginRequest) GetIdentifier() string {
	return r.Email
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate only checks presence. A malformed email is reported as bad
// credentials by the login itself.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type ChangeEmailRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewEmail        string `json:"newEmail"`
}

func (r ChangeEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewEmail, validation.Required),
	)
}

type loginUser struct {
	Email string `json:"email"`
	ID    string `json:"id"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  loginUser `json:"user"`
}

func (a *AuthController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Debug("login body parse failed", "error", err)
		return a.ErrorHandler(ctx, ErrInvalidRequestBody)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, ErrMissingCredentials)
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(LoginRequest{Email: payload.Email, Password: "********"}))
		fmt.Println("=========================")
	}

	res, err := a.Auther.Login(ctx, payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	principal := res.Admin.Principal()

	return ctx.Status(fiber.StatusOK).JSON(loginResponse{
		Token: res.Token,
		User: loginUser{
			Email: principal.Email,
			ID:    principal.ID,
		},
	})
}

func (a *AuthController) Verify(ctx *fiber.Ctx) error {
	principal, ok := GetPrincipal(ctx, a.ContextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrNoToken)
	}

	return ctx.Status(fiber.StatusOK).JSON(principal)
}

func (a *AuthController) LogOut(ctx *fiber.Ctx) error {
	a.Auther.Logout(ctx)
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Logged out successfully"})
}

func (a *AuthController) ChangePassword(ctx *fiber.Ctx) error {
	payload := new(ChangePasswordRequest)
	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Debug("change password body parse failed", "error", err)
		return a.ErrorHandler(ctx, ErrInvalidRequestBody)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, ErrMissingCredentials.WithMessage("Current password and new password are required"))
	}

	if err := a.Auther.ChangePassword(ctx, payload.CurrentPassword, payload.NewPassword); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Password updated successfully"})
}

func (a *AuthController) ChangeEmail(ctx *fiber.Ctx) error {
	payload := new(ChangeEmailRequest)
	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Debug("change email body parse failed", "error", err)
		return a.ErrorHandler(ctx, ErrInvalidRequestBody)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, ErrMissingCredentials.WithMessage("Current password and new email are required"))
	}

	if err := a.Auther.ChangeEmail(ctx, payload.CurrentPassword, payload.NewEmail); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Email updated successfully. Please log in again."})
}
