package config

import "crypto/x509"

// Short names for the extended key usages a policy file may list, matching
// the identifiers the teacher's verify/keyusage.go comments use.
const (
	EKUDocumentSigning  = "document_signing"
	EKUEmailProtection  = "email_protection"
	EKUClientAuth       = "client_auth"
	EKUAny              = "any"
	extKeyUsageDocSigning x509.ExtKeyUsage = 36 // 1.3.6.1.5.5.7.3.36, per RFC 9336
)

var ekuByName = map[string]x509.ExtKeyUsage{
	EKUDocumentSigning: extKeyUsageDocSigning,
	EKUEmailProtection: x509.ExtKeyUsageEmailProtection,
	EKUClientAuth:      x509.ExtKeyUsageClientAuth,
	EKUAny:             x509.ExtKeyUsageAny,
}

// ParseEKUs converts policy-file EKU names into x509.ExtKeyUsage values,
// silently dropping names it does not recognize.
func ParseEKUs(names []string) []x509.ExtKeyUsage {
	var out []x509.ExtKeyUsage
	for _, name := range names {
		if eku, ok := ekuByName[name]; ok {
			out = append(out, eku)
		}
	}
	return out
}
