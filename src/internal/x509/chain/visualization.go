// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// CertificateReport describes one path position for rendering.
type CertificateReport struct {
	Index              int       `json:"index" yaml:"index"`
	Role               string    `json:"role" yaml:"role"`
	Subject            string    `json:"subject" yaml:"subject"`
	Issuer             string    `json:"issuer" yaml:"issuer"`
	SerialNumber       string    `json:"serialNumber" yaml:"serialNumber"`
	Fingerprint        string    `json:"fingerprint" yaml:"fingerprint"`
	SignatureAlgorithm string    `json:"signatureAlgorithm" yaml:"signatureAlgorithm"`
	PublicKeyAlgorithm string    `json:"publicKeyAlgorithm" yaml:"publicKeyAlgorithm"`
	KeySize            int       `json:"keySize" yaml:"keySize"`
	KeyStrength        int       `json:"keyStrength" yaml:"keyStrength"`
	NotBefore          time.Time `json:"notBefore" yaml:"notBefore"`
	NotAfter           time.Time `json:"notAfter" yaml:"notAfter"`
	IsCA               bool      `json:"isCA" yaml:"isCA"`
	Status             []string  `json:"status" yaml:"status"`
}

// PathReport is the renderable form of a path and its status vector.
type PathReport struct {
	Timestamp    string              `json:"timestamp" yaml:"timestamp"`
	PathLength   int                 `json:"pathLength" yaml:"pathLength"`
	Certificates []CertificateReport `json:"certificates" yaml:"certificates"`
}

// Report builds the renderable form of p. ps may be shorter than p or nil.
func (p Path) Report(ps status.PathStatus) PathReport {
	report := PathReport{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		PathLength:   len(p),
		Certificates: make([]CertificateReport, len(p)),
	}

	for i, cert := range p {
		algo, size := keyInfo(cert)
		report.Certificates[i] = CertificateReport{
			Index:              i,
			Role:               p.role(i),
			Subject:            cert.Subject.String(),
			Issuer:             cert.Issuer.String(),
			SerialNumber:       cert.SerialNumber.String(),
			Fingerprint:        cert.Fingerprint().String(),
			SignatureAlgorithm: cert.SignatureAlgorithm.String(),
			PublicKeyAlgorithm: algo,
			KeySize:            size,
			KeyStrength:        cert.KeyStrength(),
			NotBefore:          cert.NotBefore,
			NotAfter:           cert.NotAfter,
			IsCA:               cert.IsCA(),
			Status:             codeNames(ps, i),
		}
	}
	return report
}

// RenderASCIITree renders the path as a tree, leaf first. A position is
// marked with a cross when its status set holds an error.
func (p Path) RenderASCIITree(ps status.PathStatus) string {
	if len(p) == 0 {
		return "No certificates in path"
	}

	var result strings.Builder
	for i, cert := range p {
		connector := "├── "
		if i == len(p)-1 {
			connector = "└── "
		}

		icon := "✓"
		if i < len(ps) {
			if worst, ok := ps[i].Max(); ok && worst.IsError() {
				icon = "✗"
			}
		}

		result.WriteString(fmt.Sprintf("%s[%s] %s (%s)\n", connector, icon, cert.Subject.CommonName, p.role(i)))
	}
	return result.String()
}

// RenderTable renders the path as a markdown table with the status codes of
// each position.
func (p Path) RenderTable(ps status.PathStatus) string {
	if len(p) == 0 {
		return "No certificates to display"
	}

	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"#", "Role", "Subject", "Issuer", "Valid Until", "Key", "Status"})

	var rows [][]string
	for _, c := range p.Report(ps).Certificates {
		key := fmt.Sprintf("%d-bit %s", c.KeySize, c.PublicKeyAlgorithm)
		codes := "OK"
		if len(c.Status) > 0 {
			codes = strings.Join(c.Status, ", ")
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.Index+1),
			c.Role,
			p[c.Index].Subject.CommonName,
			p[c.Index].Issuer.CommonName,
			c.NotAfter.Format("2006-01-02"),
			key,
			codes,
		})
	}

	table.Bulk(rows)
	table.Render()
	return buf.String()
}

func (p Path) role(index int) string {
	total := len(p)
	switch {
	case total == 1:
		return "Self-Signed Certificate"
	case index == 0:
		return "End-Entity Certificate"
	case index == total-1:
		return "Trust Anchor"
	default:
		return "Intermediate CA Certificate"
	}
}

func keyInfo(c *Certificate) (string, int) {
	switch k := c.PublicKey.(type) {
	case *rsa.PublicKey:
		return "RSA", k.Size() * 8
	case *ecdsa.PublicKey:
		return "ECDSA", k.Curve.Params().BitSize
	case ed25519.PublicKey:
		return "Ed25519", 256
	}
	return "unknown", 0
}

func codeNames(ps status.PathStatus, i int) []string {
	if i >= len(ps) {
		return nil
	}
	var names []string
	for _, c := range ps[i].Sorted() {
		if c == status.OK {
			continue
		}
		names = append(names, c.Name())
	}
	return names
}
