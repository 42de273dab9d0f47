/*-
 * Copyright 2026 Certrotor Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package certloader

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"os"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNoPrivateKey means a key file contained no PEM private key block.
	ErrNoPrivateKey = errors.New("no private key found")
	// ErrUnsupportedPrivateKey means a PEM private key block was found, but
	// none of the supported key encodings could parse its contents.
	ErrUnsupportedPrivateKey = errors.New("unsupported private key encoding")
	// ErrNoCertificates means a certificate file contained no parseable
	// X.509 certificates.
	ErrNoCertificates = errors.New("no certificates found")
)

// keyDecoder is one strategy for interpreting the DER bytes of a private key
// block. Decoders are tried in order until one succeeds; the name identifies
// which encoding actually matched, rather than leaving the caller to guess.
type keyDecoder struct {
	name  string
	parse func(der []byte) (crypto.PrivateKey, error)
}

var keyDecoders = []keyDecoder{
	{"PKCS#8", func(der []byte) (crypto.PrivateKey, error) { return x509.ParsePKCS8PrivateKey(der) }},
	{"PKCS#1 RSA", func(der []byte) (crypto.PrivateKey, error) { return x509.ParsePKCS1PrivateKey(der) }},
	{"SEC1 EC", func(der []byte) (crypto.PrivateKey, error) { return x509.ParseECPrivateKey(der) }},
}

// LoadPrivateKey reads a PEM file and returns the private key it contains,
// plus the name of the encoding that parsed it. Both the generic PKCS#8
// delimiters (BEGIN PRIVATE KEY) and the legacy per-algorithm forms (BEGIN
// RSA PRIVATE KEY, BEGIN EC PRIVATE KEY) are accepted. The file is read and
// parsed fresh on every call.
func LoadPrivateKey(path string) (crypto.PrivateKey, string, error) {
	blocks, err := readPEM(path)
	if err != nil {
		return nil, "", err
	}

	var keyBlock *pem.Block
	for _, block := range blocks {
		if strings.HasSuffix(block.Type, "PRIVATE KEY") {
			keyBlock = block
			break
		}
	}
	if keyBlock == nil {
		return nil, "", errors.Wrapf(ErrNoPrivateKey, "file '%s'", path)
	}

	for _, decoder := range keyDecoders {
		key, err := decoder.parse(keyBlock.Bytes)
		if err == nil {
			return key, decoder.name, nil
		}
	}

	return nil, "", errors.Wrapf(ErrUnsupportedPrivateKey, "file '%s'", path)
}

// LoadCertificateChain reads a PEM file with one or more concatenated X.509
// certificates, leaf first, and returns them in file order. Parsing stops at
// the first block that fails to parse; everything parsed up to that point is
// returned. The file is read and parsed fresh on every call.
func LoadCertificateChain(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read certificate file '%s'", path)
	}

	var chain []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			break
		}
		chain = append(chain, cert)
	}

	if len(chain) == 0 {
		return nil, errors.Wrapf(ErrNoCertificates, "file '%s'", path)
	}
	return chain, nil
}

// readPEM reads all PEM blocks from a file. Non-PEM content before, between
// or after blocks is skipped.
func readPEM(path string) ([]*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read file '%s'", path)
	}

	var blocks []*pem.Block
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// LoadTrustStore reads a CA bundle for verifying the backend, or falls back
// to the system roots if no path is given.
func LoadTrustStore(caBundlePath string) (*x509.CertPool, error) {
	if caBundlePath == "" {
		return x509.SystemCertPool()
	}

	caBundleBytes, err := os.ReadFile(caBundlePath)
	if err != nil {
		return nil, err
	}

	bundle := x509.NewCertPool()
	ok := bundle.AppendCertsFromPEM(caBundleBytes)
	if !ok {
		return nil, errors.New("unable to read certificates from CA bundle")
	}

	return bundle, nil
}
