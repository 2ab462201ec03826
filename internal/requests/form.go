package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/models"
	"gopkg.in/yaml.v3"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FormView validates and submits new support requests.
type FormView struct {
	api                API
	viewer             Viewer
	notifier           Notifier
	requireAllEvidence bool
	submitting         atomic.Bool
}

// NewFormView creates a form. With requireAllEvidence both evidence links
// must be supplied.
func NewFormView(api API, viewer Viewer, notifier Notifier, requireAllEvidence bool) *FormView {
	return &FormView{
		api:                api,
		viewer:             viewer,
		notifier:           notifier,
		requireAllEvidence: requireAllEvidence,
	}
}

// Validate checks form without touching the network.
func (f *FormView) Validate(form models.RequestForm) error {
	var fields []string

	if err := validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate form: %w", err)
		}
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}

	if f.requireAllEvidence {
		if validate.Var(form.ScreenshotEvidence, "required") != nil {
			fields = append(fields, "screenshotEvidence")
		}
		if validate.Var(form.VideoEvidence, "required") != nil {
			fields = append(fields, "videoEvidence")
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Submit validates form and files it. On success it returns the route the
// viewer should be sent to.
func (f *FormView) Submit(ctx context.Context, form models.RequestForm) (string, error) {
	if !f.submitting.CompareAndSwap(false, true) {
		return "", ErrSubmitInFlight
	}
	defer f.submitting.Store(false)

	if err := f.Validate(form); err != nil {
		log.Debug().Err(err).Msg("request form rejected")
		f.notifier.Notify(Notification{Title: "Validation Error", Description: MsgValidation, Variant: VariantDestructive})
		return "", err
	}

	if err := f.api.CreateRequest(ctx, form); err != nil {
		checkAuth(f.viewer, err)
		log.Debug().Err(err).Msg("request submission failed")
		f.notifier.Notify(Notification{
			Title:       MsgSubmissionError,
			Description: "There was an issue submitting your request. Please try again later.",
			Variant:     VariantDestructive,
		})
		return "", fmt.Errorf("failed to submit request: %w", err)
	}

	f.notifier.Notify(Notification{
		Title:       MsgRequestSubmitted,
		Description: "We'll review your case and respond as soon as possible.",
	})
	return models.RoleUser.HomeRoute(), nil
}

// LoadForm reads a request form from a YAML or JSON file, chosen by extension.
func LoadForm(path string) (models.RequestForm, error) {
	var form models.RequestForm

	data, err := os.ReadFile(path)
	if err != nil {
		return form, fmt.Errorf("failed to read form file: %w", err)
	}

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := json.Unmarshal(data, &form); err != nil {
			return form, fmt.Errorf("failed to parse JSON form: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &form); err != nil {
			return form, fmt.Errorf("failed to parse YAML form: %w", err)
		}
	}

	return form, nil
}
