package seedvalue

import "fmt"

// Enforce implements _validate_sv_constraints: given a parsed seed value
// spec and the context of an already cryptographically-verified signature,
// it checks every constraint the spec mandates and returns the first
// violation. A nil return means the signature satisfies the seed value
// (spec.md §4.5's "seed_value_ok = true"); the orchestrator is expected to
// catch any returned error and record seed_value_ok = false instead of
// failing the whole validation.
func Enforce(spec *Spec, ctx Context) error {
	if spec.Cert != nil {
		if err := spec.Cert.Satisfies(ctx.SignerCertificate, ctx.ValidationPath); err != nil {
			return err
		}
	}

	if spec.TimestampRequired && !ctx.TimestampFound {
		return validationErr("the seed value dictionary requires a trusted timestamp, but none was found, or the timestamp did not validate")
	}

	flags := spec.Flags
	if flags == 0 {
		return nil
	}

	if flags.has(FlagsUnsupported) {
		return notSupported(fmt.Sprintf("unsupported mandatory seed value items (flags=0x%x)", uint32(flags&FlagsUnsupported)))
	}

	if flags.has(FlagSubFilter) && spec.Subfilters != nil {
		if len(spec.Subfilters) == 0 {
			return notSupported("the signature encodings mandated by the seed value dictionary are not supported")
		}
		mandated := spec.Subfilters[0]
		if ctx.SubFilter != "" && mandated != ctx.SubFilter {
			return validationErr(fmt.Sprintf("the seed value dictionary mandates subfilter %q, but %q was used in the signature", mandated, ctx.SubFilter))
		}
	}

	if flags.has(FlagAddRevInfo) && spec.AddRevInfo != nil {
		want := *spec.AddRevInfo
		if want != ctx.RevocationInfoFound {
			return validationErr(fmt.Sprintf("the seed value dict mandates that revocation info %sbe added, but it was %sfound in the signature", negate(want), negate(ctx.RevocationInfoFound)))
		}
		if want && ctx.SubFilter != SubFilterAdobePKCS7Detached {
			return validationErr(fmt.Sprintf("the seed value dict mandates that Adobe-style revocation info be added; this requires subfilter %q", SubFilterAdobePKCS7Detached))
		}
	}

	if flags.has(FlagDigestMethod) && spec.DigestMethods != nil {
		if !contains(spec.DigestMethods, ctx.DigestAlgorithm) {
			return validationErr(fmt.Sprintf("the selected message digest %s is not allowed by the seed value dictionary", ctx.DigestAlgorithm))
		}
	}

	if flags.has(FlagReasons) {
		mustOmit := len(spec.Reasons) == 0 || (len(spec.Reasons) == 1 && spec.Reasons[0] == ".")
		if mustOmit && ctx.ReasonPresent {
			return validationErr("the seed value dictionary prohibits giving a reason for signing")
		}
		if !mustOmit && (!ctx.ReasonPresent || !contains(spec.Reasons, ctx.Reason)) {
			return validationErr(fmt.Sprintf("the reason for signing %q is not accepted by the seed value dictionary", ctx.Reason))
		}
	}

	return nil
}

func negate(b bool) string {
	if b {
		return ""
	}
	return "not "
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
