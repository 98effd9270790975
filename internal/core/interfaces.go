// Package core defines the capability interfaces shared by the voice-service packages.
package core

import (
	"context"
	"time"
)

// Object is a stored blob and the content type it was uploaded with.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) (*Object, error)
	Upload(ctx context.Context, obj Object) error
}

// Extraction is the plain text recovered from a document.
type Extraction struct {
	Text          string
	Strategy      string
	PageCount     int
	LikelyScanned bool
}

// Extractor recovers plain text from a document buffer of a declared MIME type.
// An unsupported MIME type yields empty text and no error.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*Extraction, error)
}

// Voice selects the speaker used by the synthesis capability.
type Voice struct {
	LanguageCode string
	Name         string
	Gender       string
}

// AudioConfig describes the encoding and prosody of synthesized audio.
type AudioConfig struct {
	Encoding     string
	SpeakingRate float64
	Pitch        float64
	VolumeGainDB float64
}

// Synthesizer turns one piece of text into encoded audio.
// Implementations must tolerate concurrent calls.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string, voice Voice, audio AudioConfig) ([]byte, error)
}

// User is the subscription state of an account.
type User struct {
	ID                 string    `json:"id"`
	Plan               string    `json:"plan"`
	SubscriptionStatus string    `json:"subscriptionStatus"`
	CurrentPeriodEnd   time.Time `json:"currentPeriodEnd,omitzero"`
}

// Transaction is a completed payment.
type Transaction struct {
	BuyerID       string    `json:"buyerId"`
	TransactionID string    `json:"transactionId"`
	Amount        string    `json:"amount"`
	Plan          string    `json:"plan"`
	PaymentID     string    `json:"paymentId"`
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UserStore persists subscription state.
type UserStore interface {
	UpdatePlan(ctx context.Context, user User) (*User, error)
}

// TransactionStore persists completed payments.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, txn Transaction) error
	ListTransactions(ctx context.Context, buyerID string) ([]Transaction, error)
}

// ImageFetcher retrieves a generated image for a prompt.
type ImageFetcher interface {
	Fetch(ctx context.Context, prompt string) ([]byte, string, error)
}
