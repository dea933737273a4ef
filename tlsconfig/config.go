// Package tlsconfig builds tls.Config values from certificate files.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io/ioutil"
)

// Create creates a new tls.Config object from the given cert, key, and CA files.
// Cert and key must be provided together or not at all.
func Create(
	caFile, certFile, keyFile string,
	insecureSkipVerify bool,
) (*tls.Config, error) {
	t := &tls.Config{
		InsecureSkipVerify: insecureSkipVerify,
	}
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("could not load TLS key/certificate pair: %s", err)
		}
		t.Certificates = []tls.Certificate{cert}
	} else if certFile != "" {
		return nil, errors.New("must provide both key and cert files: only cert file provided")
	} else if keyFile != "" {
		return nil, errors.New("must provide both key and cert files: only key file provided")
	}

	if caFile != "" {
		caCert, err := ioutil.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("could not load TLS CA: %s", err)
		}
		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caCert)
		t.RootCAs = caCertPool
	}
	return t, nil
}
