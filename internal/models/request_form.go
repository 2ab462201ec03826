package models

// RequestForm is the payload of a new support request, posted as plain strings.
type RequestForm struct {
	UserAddress        string `json:"userAddress" yaml:"userAddress" validate:"required"`
	AccusedAddress     string `json:"accusedAddress" yaml:"accusedAddress" validate:"required"`
	AccusedName        string `json:"accusedName" yaml:"accusedName" validate:"required"`
	AccusedPhone       string `json:"accusedPhone" yaml:"accusedPhone" validate:"required"`
	HarassmentType     string `json:"harassmentType" yaml:"harassmentType" validate:"required,oneof=cyber_harassment workplace_harassment stalking verbal_abuse physical_threat other"`
	SeverityLevel      string `json:"severityLevel" yaml:"severityLevel" validate:"required,oneof=low medium high critical"`
	Description        string `json:"description" yaml:"description" validate:"required"`
	ScreenshotEvidence string `json:"screenshotEvidence" yaml:"screenshotEvidence" validate:"omitempty,url"`
	VideoEvidence      string `json:"videoEvidence" yaml:"videoEvidence" validate:"omitempty,url"`
}
