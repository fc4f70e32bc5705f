package ledger

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/speedrun-hq/paydesk/pkg/models"
)

// rawAccount is the wire form of a payment account
type rawAccount struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Owner  string `json:"owner"`
	Backup string `json:"backup"`
}

func (r rawAccount) toModel() models.Account {
	return models.Account{
		ID:     r.ID,
		Name:   r.Name,
		Owner:  models.NormalizeAddress(r.Owner),
		Backup: models.NormalizeAddress(r.Backup),
	}
}

// rawIntent is the wire form of an intent. Numbers travel as decimal strings.
type rawIntent struct {
	Key            string   `json:"key"`
	Type           string   `json:"type"`
	Creator        string   `json:"creator"`
	Issuer         string   `json:"issuer,omitempty"`
	Recipient      string   `json:"recipient,omitempty"`
	Description    string   `json:"description,omitempty"`
	Amount         string   `json:"amount"`
	CoinType       string   `json:"coinType"`
	CreationTime   string   `json:"creationTime,omitempty"`
	ExpirationTime string   `json:"expirationTime,omitempty"`
	Stage          string   `json:"stage"`
	LockedObjects  []string `json:"lockedObjects,omitempty"`
}

func (r rawIntent) toModel() (models.Intent, error) {
	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return models.Intent{}, fmt.Errorf("intent %s: invalid amount %q", r.Key, r.Amount)
	}

	creation, err := parseMillis(r.CreationTime)
	if err != nil {
		return models.Intent{}, fmt.Errorf("intent %s: invalid creation time: %w", r.Key, err)
	}
	expiration, err := parseMillis(r.ExpirationTime)
	if err != nil {
		return models.Intent{}, fmt.Errorf("intent %s: invalid expiration time: %w", r.Key, err)
	}

	kind := models.ParseKind(r.Type)
	// a zero duration is how payment requests without an expiry are stored
	if kind == models.KindPay && expiration != nil && *expiration == 0 {
		expiration = nil
	}

	return models.Intent{
		Key:             r.Key,
		Kind:            kind,
		Creator:         models.NormalizeAddress(r.Creator),
		Issuer:          models.NormalizeAddress(r.Issuer),
		Recipient:       models.NormalizeAddress(r.Recipient),
		Description:     r.Description,
		Amount:          amount,
		CoinType:        r.CoinType,
		CreationTime:    creation,
		ExpirationTime:  expiration,
		Stage:           models.ParseStage(r.Stage),
		LockedObjectIDs: r.LockedObjects,
	}, nil
}

// parseMillis returns nil for an absent timestamp. Values are Move u64s;
// anything above MaxInt64 is clamped.
func parseMillis(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, err
	}
	v := int64(math.MaxInt64)
	if u <= math.MaxInt64 {
		v = int64(u)
	}
	return &v, nil
}

type rawObjectLock struct {
	ObjectID  string `json:"objectId"`
	IntentKey string `json:"intentKey"`
}

type rawCoin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Balance      string `json:"balance"`
}

type coinPage struct {
	Data        []rawCoin `json:"data"`
	NextCursor  *string   `json:"nextCursor"`
	HasNextPage bool      `json:"hasNextPage"`
}

type builtTransaction struct {
	TxBytes string `json:"txBytes"`
}

type issuePaymentParams struct {
	Amount       string `json:"amount"`
	CoinType     string `json:"coinType"`
	Description  string `json:"description"`
	ExpirationMs string `json:"expirationMs,omitempty"`
}

type makePaymentParams struct {
	IntentKey string   `json:"intentKey"`
	Issuer    string   `json:"issuer"`
	Amount    string   `json:"amount"`
	CoinType  string   `json:"coinType"`
	Coins     []string `json:"coins"`
}

type transferParams struct {
	Recipient string   `json:"recipient"`
	Amount    string   `json:"amount"`
	CoinType  string   `json:"coinType"`
	Coins     []string `json:"coins"`
}

type withdrawParams struct {
	Recipient   string   `json:"recipient"`
	Amount      string   `json:"amount"`
	CoinType    string   `json:"coinType"`
	Coins       []string `json:"coins"`
	ExpiresAtMs string   `json:"expiresAtMs"`
}
