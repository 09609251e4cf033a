// Command pdfvalidate verifies every signature field in a PDF file and
// prints the result as JSON, one object per signature field. It plays the
// role the teacher's own cli package plays for "pdfsign verify", adapted to
// this module's signature-validation-only scope (signature creation,
// appearance rendering and the rest of the teacher's "sign" side are out of
// scope; see DESIGN.md).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/digitorus/pdfvalidate/certvalidator"
	"github.com/digitorus/pdfvalidate/config"
	"github.com/digitorus/pdfvalidate/pdfvalidate"
)

func main() {
	flag.Usage = func() {
		fmt.Printf("Usage: %s [options] <input.pdf>\n\n", os.Args[0])
		fmt.Println("Validate every signature field in a PDF file and print the results as JSON.")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
	}

	policyPath := flag.String("policy", "", "Path to a TOML validation policy file (default: built-in policy)")
	requireNonRepudiation := flag.Bool("require-non-repudiation", false, "Require Non-Repudiation key usage in signing certificates")
	allowUntrustedRoots := flag.Bool("allow-untrusted-roots", false, "Fall back to the signature's own embedded certificates when no trusted path is found")
	forceRevInfo := flag.Bool("force-revinfo", false, "Fail signatures that carry no usable revocation evidence")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	policy := config.DefaultPolicy()
	if *policyPath != "" {
		p, err := config.Load(*policyPath)
		if err != nil {
			log.Fatalf("pdfvalidate: %v", err)
		}
		policy = p
	}
	policy.RequireNonRepudiation = policy.RequireNonRepudiation || *requireNonRepudiation
	policy.AllowUntrustedRoots = policy.AllowUntrustedRoots || *allowUntrustedRoots
	policy.ForceRevInfo = policy.ForceRevInfo || *forceRevInfo

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("pdfvalidate: %v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Fatalf("pdfvalidate: %v", err)
	}

	validator := certvalidator.New()
	validator.AllowUntrustedRoots = policy.AllowUntrustedRoots

	opts := &pdfvalidate.Options{
		Policy:    policy,
		Validator: validator,
		Logger:    log.New(os.Stderr, "pdfvalidate: ", 0),
	}

	statuses, err := pdfvalidate.ValidateAll(f, info.Size(), opts)
	if err != nil {
		log.Fatalf("pdfvalidate: %v", err)
	}

	out, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		log.Fatalf("pdfvalidate: %v", err)
	}
	fmt.Println(string(out))

	for _, s := range statuses {
		if !s.Valid || !s.Trusted || !s.DocMDPOK || !s.SeedValueOK {
			os.Exit(1)
		}
	}
}
