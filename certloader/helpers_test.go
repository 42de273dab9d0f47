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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testLogger struct {
	t *testing.T
}

func (l *testLogger) Printf(format string, v ...interface{}) {
	l.t.Logf(format, v...)
}

// selfSignedCert returns a PEM-encoded self-signed certificate for the given
// common name, signed by the given key.
func selfSignedCert(t *testing.T, cn string, key crypto.Signer) []byte {
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func ecdsaTestKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func rsaTestKey(t *testing.T) *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// pkcs8KeyPEM encodes a key with the generic PKCS#8 delimiters.
func pkcs8KeyPEM(t *testing.T, key crypto.Signer) []byte {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// pkcs1KeyPEM encodes an RSA key with the legacy two-line delimiter form.
func pkcs1KeyPEM(t *testing.T, key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

// sec1KeyPEM encodes an EC key with the legacy EC delimiter form.
func sec1KeyPEM(t *testing.T, key *ecdsa.PrivateKey) []byte {
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// testPoolFiles writes a cert/key pair per common name and returns the path
// lists, using a different key encoding for each entry so that rotation also
// exercises all the decoder strategies.
func testPoolFiles(t *testing.T, cns []string) (certPaths, keyPaths []string) {
	dir := t.TempDir()
	for i, cn := range cns {
		var keyPEM []byte
		var signer crypto.Signer
		switch i % 3 {
		case 0:
			key := ecdsaTestKey(t)
			signer, keyPEM = key, pkcs8KeyPEM(t, key)
		case 1:
			key := ecdsaTestKey(t)
			signer, keyPEM = key, sec1KeyPEM(t, key)
		default:
			key := rsaTestKey(t)
			signer, keyPEM = key, pkcs1KeyPEM(t, key)
		}

		certPath := filepath.Join(dir, cn+".crt")
		keyPath := filepath.Join(dir, cn+".key")
		require.NoError(t, os.WriteFile(certPath, selfSignedCert(t, cn, signer), 0600))
		require.NoError(t, os.WriteFile(keyPath, keyPEM, 0600))

		certPaths = append(certPaths, certPath)
		keyPaths = append(keyPaths, keyPath)
	}
	return certPaths, keyPaths
}
