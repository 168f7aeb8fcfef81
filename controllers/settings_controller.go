package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockwatch/services/apperr"
	"stockwatch/services/marketdata"
	"stockwatch/services/notify"
	"stockwatch/services/secrets"
	"stockwatch/services/settings"
)

// SettingsController handles configuration reads, writes and connection
// tests. Sensitive values are encrypted here, before they reach the
// registry.
type SettingsController struct {
	registry   *settings.Registry
	secrets    *secrets.Store
	gateway    *marketdata.Gateway
	dispatcher *notify.Dispatcher
}

func NewSettingsController(registry *settings.Registry, store *secrets.Store, gateway *marketdata.Gateway, dispatcher *notify.Dispatcher) *SettingsController {
	return &SettingsController{
		registry:   registry,
		secrets:    store,
		gateway:    gateway,
		dispatcher: dispatcher,
	}
}

// GetSettings returns every setting with sensitive values redacted to an
// is_set flag.
// GET /api/settings
func (sc *SettingsController) GetSettings(c *gin.Context) {
	views, err := sc.registry.GetAll()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

type settingUpdate struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

type updateSettingsRequest struct {
	Settings []settingUpdate `json:"settings" binding:"required"`
}

type settingOutcome struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// UpdateSettings applies a batch of setting writes, reporting a per-key
// outcome. One key's failure does not abort the rest.
// POST /api/settings
func (sc *SettingsController) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	outcomes := make([]settingOutcome, 0, len(req.Settings))
	for _, update := range req.Settings {
		// An empty value clears the setting.
		if update.Value == "" {
			if err := sc.registry.Delete(update.Key); err != nil {
				outcomes = append(outcomes, settingOutcome{Key: update.Key, Error: err.Error()})
				continue
			}
			outcomes = append(outcomes, settingOutcome{Key: update.Key, Success: true})
			continue
		}

		value := update.Value
		if settings.IsSensitive(update.Key) {
			ciphertext, err := sc.secrets.Encrypt(value)
			if err != nil {
				outcomes = append(outcomes, settingOutcome{Key: update.Key, Error: err.Error()})
				continue
			}
			value = ciphertext
		}
		if err := sc.registry.Set(update.Key, value); err != nil {
			outcomes = append(outcomes, settingOutcome{Key: update.Key, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, settingOutcome{Key: update.Key, Success: true})
	}
	c.JSON(http.StatusOK, gin.H{"results": outcomes})
}

type testConnectionRequest struct {
	Service string `json:"service" binding:"required"`
}

// TestConnection probes the named external dependency with the stored
// credentials.
// POST /api/settings/test-connection
func (sc *SettingsController) TestConnection(c *gin.Context) {
	var req testConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var err error
	switch req.Service {
	case "stock_api":
		err = sc.gateway.TestConnection(c.Request.Context())
	case "telegram":
		err = sc.dispatcher.TestDelivery(c.Request.Context())
	case "ai_api":
		err = sc.checkAIKey()
	default:
		err = fmt.Errorf("%w: unknown service %q", apperr.ErrNotConfigured, req.Service)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// checkAIKey verifies the stored AI credential decrypts. Predictions run
// on a stub backend, so there is no upstream call to make yet.
func (sc *SettingsController) checkAIKey() error {
	ciphertext, ok, err := sc.registry.Get(settings.KeyAIAPIKey)
	if err != nil {
		return err
	}
	if !ok || ciphertext == "" {
		return fmt.Errorf("%w: ai_api_key not set", apperr.ErrNotConfigured)
	}
	if _, ok := sc.secrets.Decrypt(ciphertext); !ok {
		return fmt.Errorf("%w: ai_api_key cannot be decrypted", apperr.ErrNotConfigured)
	}
	return nil
}
