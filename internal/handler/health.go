package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BlackMission/gatekeeper/internal/auth"
	"github.com/BlackMission/gatekeeper/internal/domain"
	"github.com/BlackMission/gatekeeper/internal/respond"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp string            `json:"timestamp"`
}

type unhealthyResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Code   string `json:"code"`
}

// Health handles GET /health and GET /auth/health.
// It checks the provider configuration and signs and verifies a short-lived sample token.
func Health(gateway auth.IdentityGateway, tokens auth.TokenService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkHealth(gateway, tokens); err != nil {
			logger.Error("health check failed", zap.Error(err))
			body := unhealthyResponse{
				Status: "unhealthy",
				Error:  "Authentication service is not operational",
				Code:   string(domain.CodeConfiguration),
			}
			if typed, ok := domain.AsError(err); ok {
				body.Code = string(typed.Code)
				// Configuration errors name the missing settings.
				if typed.Code == domain.CodeConfiguration {
					body.Error = typed.Message
				}
			}
			respond.JSON(w, http.StatusServiceUnavailable, body)
			return
		}

		respond.JSON(w, http.StatusOK, healthResponse{
			Status: "healthy",
			Services: map[string]string{
				"oauth": "configured",
				"jwt":   "operational",
			},
			Timestamp: respond.Now().UTC().Format(time.RFC3339),
		})
	}
}

func checkHealth(gateway auth.IdentityGateway, tokens auth.TokenService) error {
	if err := gateway.ValidateConfiguration(); err != nil {
		return err
	}
	sample, err := tokens.Issue(domain.IdentityPayload{
		ID:    "health-check",
		Email: "health-check@" + tokens.AllowedDomain(),
	}, time.Minute)
	if err != nil {
		return err
	}
	_, err = tokens.Verify(sample)
	return err
}
