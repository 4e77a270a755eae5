package sitebuilder

// Variant selects which of the two site configurations is built.
type Variant string

const (
	// VariantPublic builds the site from the publicly available sources.
	VariantPublic Variant = "public"
	// VariantInsiders builds the site including privileged source content.
	// It requires an insiders access credential.
	VariantInsiders Variant = "insiders"
)

// SelectVariant returns VariantInsiders iff the insiders credential is
// present.
// It is evaluated exactly once per pipeline run, before the build is started,
// the selection is not revisited later.
func SelectVariant(insidersCredential string) Variant {
	if insidersCredential != "" {
		return VariantInsiders
	}

	return VariantPublic
}
