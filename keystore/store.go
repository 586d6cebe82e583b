package keystore

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io/ioutil"
)

// Store holds the instance's signing key pair. It is the signature
// collaborator: the federation pipeline only ever asks it to sign
// outbound deliveries or verify detached signatures, never touching
// key material directly.
type Store struct {
	privKeyPath, pubKeyPath string
	pubKeyPem               []byte
	pubKey                  *rsa.PublicKey
	privKey                 *rsa.PrivateKey
}

// PubKey returns the public key of the Store.
func (s *Store) PubKey() *rsa.PublicKey {
	return s.pubKey
}

// PubKeyPem returns the PEM encoded public key of the Store.
func (s *Store) PubKeyPem() []byte {
	return s.pubKeyPem
}

// Sign produces a base64 RSA signature over message.
func (s *Store) Sign(message []byte) (string, error) {
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.privKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 RSA signature over message against the
// store's public key.
func (s *Store) Verify(message []byte, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("signature is not valid base64: %v", err)
	}
	digest := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(s.pubKey, crypto.SHA256, digest[:], sig)
}

// NewStore creates a new Store from PEM key files on disk.
func NewStore(privKeyPath, pubKeyPath string) (*Store, error) {
	if privKeyPath == "" || pubKeyPath == "" {
		return nil, fmt.Errorf("private key and public key paths are not specified properly")
	}

	pubKeyBytes, err := ioutil.ReadFile(pubKeyPath)
	if err != nil {
		return nil, fmt.Errorf("could not read public key file")
	}

	privKeyBytes, err := ioutil.ReadFile(privKeyPath)
	if err != nil {
		return nil, fmt.Errorf("could not read private key file")
	}

	store, err := makeStore(pubKeyBytes, privKeyBytes)
	if err != nil {
		return nil, err
	}

	store.privKeyPath = privKeyPath
	store.pubKeyPath = pubKeyPath
	return store, nil
}

func makeStore(pubKeyBytes, privKeyBytes []byte) (*Store, error) {
	pubKeyBytesDec, _ := pem.Decode(pubKeyBytes)
	if pubKeyBytesDec == nil {
		return nil, fmt.Errorf("public key is not in PEM form")
	}
	pubKeyBase, err := x509.ParsePKIXPublicKey(pubKeyBytesDec.Bytes)
	if err != nil {
		return nil, fmt.Errorf("could not parse public key: %v", err)
	}

	pubKey, ok := pubKeyBase.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not in RSA form")
	}

	privKeyBytesDec, _ := pem.Decode(privKeyBytes)
	if privKeyBytesDec == nil {
		return nil, fmt.Errorf("private key is not in PEM form")
	}
	privKey, err := x509.ParsePKCS1PrivateKey(privKeyBytesDec.Bytes)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key")
	}

	return &Store{
		privKey:   privKey,
		pubKey:    pubKey,
		pubKeyPem: pubKeyBytes,
	}, nil
}

// TestStore returns a Store with a freshly generated throwaway key
// pair, for use in tests only.
func TestStore() *Store {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	pubKeyDer, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	if err != nil {
		panic(err)
	}
	pubKeyPem := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubKeyDer,
	})

	return &Store{
		privKey:   privKey,
		pubKey:    &privKey.PublicKey,
		pubKeyPem: pubKeyPem,
	}
}
