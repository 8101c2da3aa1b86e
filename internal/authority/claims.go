package authority

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
)

// Claim names carried by platform-issued access tokens.
const (
	claimTenant      = "tid"
	claimCorrelation = "cid"
)

// ClaimsExtractor turns a signed bearer token into the raw Input fields the
// factory consumes. This is syntactic extraction at the transport boundary:
// it checks the signature and the field shapes, nothing more. The kernel's
// own AUTHORITY_MISSING/AUTHORITY_INVALID checks happen later, on the minted
// context.
type ClaimsExtractor struct {
	signingKey []byte
}

func NewClaimsExtractor(signingKey []byte) *ClaimsExtractor {
	return &ClaimsExtractor{signingKey: signingKey}
}

// Extract parses and verifies tokenString. When expected is non-nil, a token
// scoped to a different tenant is an explicit TENANT_MISMATCH: at this
// boundary the mismatch is transport-detectable, unlike in-kernel lookups
// which suppress cross-tenant existence.
func (e *ClaimsExtractor) Extract(tokenString string, expected domain.TenantID) (Input, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return e.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Input{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid bearer token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Input{}, dErrors.New(dErrors.CodeValidation, "invalid token claims")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Input{}, dErrors.New(dErrors.CodeValidation, "token is missing the subject claim")
	}
	clinicianID, err := domain.ParseClinicianID(subject)
	if err != nil {
		return Input{}, err
	}

	tenantRaw, _ := claims[claimTenant].(string)
	tenantID, err := domain.ParseTenantID(tenantRaw)
	if err != nil {
		return Input{}, err
	}
	if !expected.IsNil() && tenantID != expected {
		return Input{}, dErrors.New(dErrors.CodeTenantMismatch, "token tenant does not match the requested tenant")
	}

	correlationID, _ := claims[claimCorrelation].(string)

	return Input{
		ClinicianID:   clinicianID,
		TenantID:      tenantID,
		CorrelationID: correlationID,
	}, nil
}

// Issue signs a token carrying the given input. Used by the demo wiring and
// by tests that need a well-formed inbound token.
func (e *ClaimsExtractor) Issue(in Input, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":            in.ClinicianID.String(),
		claimTenant:      in.TenantID.String(),
		claimCorrelation: in.CorrelationID,
		"iat":            now.Unix(),
		"exp":            now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(e.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
