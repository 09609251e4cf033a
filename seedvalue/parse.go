package seedvalue

import (
	"crypto/x509"

	"github.com/digitorus/pdf"
)

// ParseCertConstraints builds a CertConstraints from a signature field's
// /Cert dictionary, translating SigCertConstraints.from_pdf_object.
// /Subject and /Issuer entries are DER-encoded certificates stored as PDF
// byte strings.
func ParseCertConstraints(dict pdf.Value) (*CertConstraints, error) {
	cc := &CertConstraints{
		Flags:   CertFlags(dict.Key("Ff").Int64()),
		URLType: "Browser",
	}

	subjects, err := parseCertArray(dict.Key("Subject"))
	if err != nil {
		return nil, err
	}
	cc.Subjects = subjects

	issuers, err := parseCertArray(dict.Key("Issuer"))
	if err != nil {
		return nil, err
	}
	cc.Issuers = issuers

	subjectDNArr := dict.Key("SubjectDN")
	for i := 0; i < subjectDNArr.Len(); i++ {
		dn := subjectDNArr.Index(i)
		for _, k := range dn.Keys() {
			cc.SubjectDN = append(cc.SubjectDN, DNAttribute{
				OID:   abbrevToOID(k),
				Value: dn.Key(k).RawString(),
			})
		}
	}

	if url := dict.Key("URL"); !url.IsNull() {
		cc.InfoURL = url.RawString()
		if ut := dict.Key("URLType"); !ut.IsNull() {
			cc.URLType = ut.Name()
		}
	}

	return cc, nil
}

func parseCertArray(arr pdf.Value) ([]*x509.Certificate, error) {
	if arr.IsNull() {
		return nil, nil
	}
	certs := make([]*x509.Certificate, 0, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		der := []byte(arr.Index(i).RawString())
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// nameTypeAbbrevsRev mirrors fields.py's name_type_abbrevs_rev: the common
// short attribute names a /SubjectDN dict may use instead of a bare OID.
var nameTypeAbbrevsRev = map[string]string{
	"CN":           "2.5.4.3",
	"SERIALNUMBER": "2.5.4.5",
	"C":            "2.5.4.6",
	"L":            "2.5.4.7",
	"ST":           "2.5.4.8",
	"O":            "2.5.4.10",
	"OU":           "2.5.4.11",
}

func abbrevToOID(attr string) string {
	if oid, ok := nameTypeAbbrevsRev[upper(attr)]; ok {
		return oid
	}
	return attr
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// ParseSpec builds a Spec from a signature field's /SV dictionary,
// translating SigSeedValueSpec.from_pdf_object. Unlike the reference
// implementation, it does not enforce /Filter or /V (minimum version) up
// front: those are advisory parse-time rejections specific to a signing
// workflow, not a validator's concern, and spec.md §4.5 never mentions
// them. It is still lenient about unrecognized /SubFilter entries, exactly
// as the reference implementation's _subfilters() generator is.
func ParseSpec(dict pdf.Value) (*Spec, error) {
	spec := &Spec{
		Flags: Flags(dict.Key("Ff").Int64()),
	}

	if sf := dict.Key("SubFilter"); !sf.IsNull() {
		list := make([]string, 0, sf.Len())
		for i := 0; i < sf.Len(); i++ {
			name := sf.Index(i).Name()
			if knownSubFilters[name] {
				list = append(list, name)
			}
		}
		spec.Subfilters = list
	}

	if dm := dict.Key("DigestMethod"); !dm.IsNull() {
		list := make([]string, 0, dm.Len())
		for i := 0; i < dm.Len(); i++ {
			list = append(list, lower(dm.Index(i).RawString()))
		}
		spec.DigestMethods = list
	}

	if reasons := dict.Key("Reasons"); !reasons.IsNull() {
		list := make([]string, 0, reasons.Len())
		for i := 0; i < reasons.Len(); i++ {
			list = append(list, reasons.Index(i).RawString())
		}
		spec.Reasons = list
	}

	if ari := dict.Key("AddRevInfo"); !ari.IsNull() {
		v := ari.Bool()
		spec.AddRevInfo = &v
	}

	if ts := dict.Key("TimeStamp"); !ts.IsNull() {
		if url := ts.Key("URL"); !url.IsNull() {
			spec.TimestampURL = url.RawString()
		}
		spec.TimestampRequired = ts.Key("Ff").Int64() != 0
	}

	if cert := dict.Key("Cert"); !cert.IsNull() {
		cc, err := ParseCertConstraints(cert)
		if err != nil {
			return nil, err
		}
		spec.Cert = cc
	}

	return spec, nil
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}
