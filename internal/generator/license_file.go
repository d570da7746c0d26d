package generator

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/keyline/license-backoffice/internal/util"
	"go.uber.org/zap"
)

type licenseFileGenerator struct {
	keys   KeySource
	logger *zap.Logger
}

func (g *licenseFileGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	key, err := util.GenerateProductKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate license key: %w", err)
	}
	code, err := util.GenerateLicenseCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate license code: %w", err)
	}

	priv, pubPEM, err := g.keys.ActiveKeyPair(ctx, req.ProductID)
	if err != nil {
		g.logger.Error("No usable signing key for product",
			zap.String("product_id", req.ProductID.String()), zap.Error(err))
		return nil, fmt.Errorf("signing key lookup failed for product %s: %w", req.ProductID, err)
	}

	payload := signingPayload(key, req)
	digest := sha256.Sum256([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign license payload: %w", err)
	}

	return &Result{
		LicenseKey: key,
		Code:       code,
		Signature:  base64.StdEncoding.EncodeToString(sig),
		PublicKey:  pubPEM,
	}, nil
}

// signingPayload is the canonical byte string bound by the signature. Field
// order is part of the format; do not reorder.
func signingPayload(key string, req *Request) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		key,
		req.ProductID,
		req.ConsumerID,
		req.Tier,
		req.ValidFrom.Unix(),
		req.ValidTo.Unix(),
	)
}
