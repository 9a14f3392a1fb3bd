package usecase

import (
	"errors"
	"log/slog"
	"strings"

	"fleetWs/internal/modules/realtime/domain"
	"fleetWs/internal/shared/auth"
	"fleetWs/internal/shared/logging"
)

// ErrUserMismatch means a strict-mode token subject disagrees with the userId query.
var ErrUserMismatch = errors.New("token subject does not match userId")

type ConnectInput struct {
	Namespace domain.Namespace
	Token     string
	UserID    string
}

// ConnectUseCase resolves the identity of a websocket handshake.
//
// The dashboard always verifies a bearer token. The other namespaces trust the
// userId query parameter as given unless strict mode is on, in which case they
// verify the token like the dashboard does.
type ConnectUseCase struct {
	validator auth.TokenValidator
	strict    bool
	logger    *slog.Logger
}

func NewConnectUseCase(validator auth.TokenValidator, strict bool, logger *slog.Logger) *ConnectUseCase {
	return &ConnectUseCase{validator: validator, strict: strict, logger: logging.Component(logger, "connect")}
}

// RequiresToken reports whether handshakes on ns must carry a valid token.
func (uc *ConnectUseCase) RequiresToken(ns domain.Namespace) bool {
	return ns == domain.NamespaceDashboard || uc.strict
}

func (uc *ConnectUseCase) Execute(input ConnectInput) (domain.Identity, error) {
	queryUser := strings.TrimSpace(input.UserID)
	if !uc.RequiresToken(input.Namespace) {
		return domain.Identity{UserID: queryUser}, nil
	}

	claims, err := uc.validator.Validate(input.Token)
	if err != nil {
		uc.logger.Warn("ws handshake token rejected", slog.String("namespace", input.Namespace.String()), slog.Any("error", err))
		return domain.Identity{}, err
	}

	subject := strings.TrimSpace(claims.Subject)
	if queryUser != "" && queryUser != subject && input.Namespace != domain.NamespaceDashboard {
		return domain.Identity{}, ErrUserMismatch
	}

	identity := domain.Identity{UserID: subject, Authenticated: true}
	if input.Namespace.HasRoleRooms() {
		identity.Roles = claims.AllRoles()
	}
	return identity, nil
}
