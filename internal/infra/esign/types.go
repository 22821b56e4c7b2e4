package esign

import (
	"github.com/go-playground/validator/v10"
)

// Role tags accepted by the branded template example.
const (
	RoleSigner = "signer"
	RoleCC     = "cc"
)

// EnvelopeTemplate is a single entry of the template listing.
type EnvelopeTemplate struct {
	TemplateID   string `json:"templateId"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// EnvelopeTemplateResults is the response of the template listing endpoint.
type EnvelopeTemplateResults struct {
	EnvelopeTemplates []EnvelopeTemplate `json:"envelopeTemplates"`
	ResultSetSize     string             `json:"resultSetSize,omitempty"`
	TotalSetSize      string             `json:"totalSetSize,omitempty"`
}

// Brand is an account brand that can be applied to an envelope.
type Brand struct {
	BrandID   string `json:"brandId"`
	BrandName string `json:"brandName"`
	IsDefault bool   `json:"isSendingDefault,omitempty"`
}

// BrandsResponse is the response of the brand listing endpoint.
type BrandsResponse struct {
	Brands                  []Brand `json:"brands"`
	RecipientBrandIDDefault string  `json:"recipientBrandIdDefault,omitempty"`
	SenderBrandIDDefault    string  `json:"senderBrandIdDefault,omitempty"`
}

// TemplateRole assigns a recipient to a role defined by the template.
type TemplateRole struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	RoleName string `json:"roleName" validate:"oneof=signer cc"`
}

// EnvelopeDefinition is the body of the create envelope call.
type EnvelopeDefinition struct {
	TemplateID    string         `json:"templateId" validate:"required"`
	BrandID       string         `json:"brandId,omitempty" validate:"required"`
	TemplateRoles []TemplateRole `json:"templateRoles" validate:"required,min=1,dive"`
	Status        string         `json:"status,omitempty" validate:"omitempty,oneof=sent created"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the definition before it leaves the process.
func (d EnvelopeDefinition) Validate() error {
	return validate.Struct(d)
}

// EnvelopeSummary is returned by a successful create envelope call.
type EnvelopeSummary struct {
	EnvelopeID     string `json:"envelopeId"`
	Status         string `json:"status,omitempty"`
	StatusDateTime string `json:"statusDateTime,omitempty"`
	URI            string `json:"uri,omitempty"`
}

// Account is one of the accounts a user can act on.
type Account struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	IsDefault   bool   `json:"is_default"`
	BaseURI     string `json:"base_uri"`
}

// UserInfo is returned by the OAuth userinfo endpoint.
type UserInfo struct {
	Sub      string    `json:"sub"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Accounts []Account `json:"accounts"`
}
