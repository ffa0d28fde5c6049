// Package notify builds the outbound notification content for each domain
// event: the ordered parameter list for a pre-approved WhatsApp template and
// an equivalent plain-text fallback body. The package is pure — no I/O, no
// persistence — and the dispatch layer performs the actual network call.
package notify

import (
	"fmt"

	"golang.org/x/text/language"
)

// Template names. These are provider-side identifiers fixed by Meta's
// template approval flow; renaming one here without re-approval breaks sends.
const (
	TemplateConfirmation = "appointment_confirmation"
	TemplateReminder     = "appointment_reminder"
	TemplateCancellation = "appointment_cancellation"
	TemplateReschedule   = "appointment_reschedule"
	TemplateCompletion   = "appointment_completed"
	TemplateReceipt      = "payment_receipt"
	TemplateSignature    = "signature_request"
)

// DefaultLanguage is the language used when a tenant has no locale preference.
const DefaultLanguage = "es"

// Contract pins the externally approved shape of one template in one
// language: its body parameter count and order are owned by the provider's
// approval process, so they live here as data keyed by (name, language)
// rather than as positional literals scattered through composer code.
type Contract struct {
	Name       string
	Language   string
	ParamCount int
}

// Catalog is the set of approved template contracts, keyed by template name
// and language code.
type Catalog struct {
	contracts map[string]map[string]Contract
}

// NewCatalog builds a catalog from a contract list. Later entries for the
// same (name, language) overwrite earlier ones, which lets deployments layer
// overrides on top of DefaultCatalog.
func NewCatalog(contracts ...Contract) *Catalog {
	c := &Catalog{contracts: make(map[string]map[string]Contract)}
	for _, ct := range contracts {
		byLang, ok := c.contracts[ct.Name]
		if !ok {
			byLang = make(map[string]Contract)
			c.contracts[ct.Name] = byLang
		}
		// Store the provider's underscore form so the contract language can go
		// straight onto the wire.
		ct.Language = normalizeLang(ct.Language)
		byLang[ct.Language] = ct
	}
	return c
}

// DefaultCatalog returns the contracts for the currently approved template
// set. Parameter counts must track the provider-side template bodies.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		// {{1}} customer, {{2}} service, {{3}} business, {{4}} date/time
		Contract{Name: TemplateConfirmation, Language: "es", ParamCount: 4},
		Contract{Name: TemplateReminder, Language: "es", ParamCount: 4},
		// {{1}} customer, {{2}} service, {{3}} business
		Contract{Name: TemplateCancellation, Language: "es", ParamCount: 3},
		// {{1}} customer, {{2}} service, {{3}} old date/time, {{4}} new date/time
		Contract{Name: TemplateReschedule, Language: "es", ParamCount: 4},
		// {{1}} customer, {{2}} service, {{3}} business
		Contract{Name: TemplateCompletion, Language: "es", ParamCount: 3},
		// {{1}} customer, {{2}} amount, {{3}} business, {{4}} reference
		Contract{Name: TemplateReceipt, Language: "es", ParamCount: 4},
		// {{1}} customer, {{2}} document, {{3}} business, {{4}} link
		Contract{Name: TemplateSignature, Language: "es", ParamCount: 4},
	)
}

// Lookup resolves the contract for (name, lang). When the exact language is
// not registered it falls back to the base language (es_MX → es) and finally
// to DefaultLanguage, so a tenant with an unprovisioned locale still sends.
func (c *Catalog) Lookup(name, lang string) (Contract, error) {
	byLang, ok := c.contracts[name]
	if !ok {
		return Contract{}, fmt.Errorf("notify: unknown template %q", name)
	}
	for _, candidate := range []string{normalizeLang(lang), baseLang(lang), DefaultLanguage} {
		if candidate == "" {
			continue
		}
		if ct, ok := byLang[candidate]; ok {
			return ct, nil
		}
	}
	return Contract{}, fmt.Errorf("notify: template %q has no contract for language %q", name, lang)
}

// normalizeLang canonicalizes a BCP-47-ish code into the provider's
// underscore form ("es-MX" → "es_MX"). Unparseable codes pass through
// untouched so an odd but approved provider code still matches.
func normalizeLang(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	base, conf := tag.Base()
	if conf == language.No {
		return code
	}
	if region, rconf := tag.Region(); rconf >= language.High && region.IsCountry() {
		return base.String() + "_" + region.String()
	}
	return base.String()
}

// baseLang reduces a code to its primary subtag ("es_MX" → "es").
func baseLang(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}
