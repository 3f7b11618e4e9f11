package ap2

import (
	"encoding/json"
	"time"

	"github.com/oapi-codegen/runtime"
)

// CheckoutSessionStatus defines model for CheckoutSession.Status.
type CheckoutSessionStatus string

// Defines values for CheckoutSessionStatus.
const (
	CheckoutSessionStatusIncomplete       CheckoutSessionStatus = "incomplete"
	CheckoutSessionStatusReadyForComplete CheckoutSessionStatus = "ready_for_complete"
	CheckoutSessionStatusCompleted        CheckoutSessionStatus = "completed"
)

// MessageErrorCode defines model for MessageError.Code.
type MessageErrorCode string

// Defines values for MessageErrorCode.
const (
	MessageErrorCodeInvalid         MessageErrorCode = "invalid"
	MessageErrorCodeMissing         MessageErrorCode = "missing"
	MessageErrorCodeOutOfStock      MessageErrorCode = "out_of_stock"
	MessageErrorCodePaymentDeclined MessageErrorCode = "payment_declined"
	MessageErrorCodeMandateRejected MessageErrorCode = "mandate_rejected"
)

// MessageContentType defines model for message content types.
type MessageContentType string

// Defines values for MessageContentType.
const (
	MessageContentTypeMarkdown MessageContentType = "markdown"
	MessageContentTypePlain    MessageContentType = "plain"
)

// Product describes a catalog entry. Price is in minor currency units.
type Product struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	ImageURL    string `json:"image_url,omitempty"`
}

// LineItem snapshots one product at the quantity ordered.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Item      Product `json:"item"`
	Subtotal  int64   `json:"subtotal"`
}

// Buyer defines model for Buyer.
type Buyer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Address defines model for Address.
type Address struct {
	Name       string  `json:"name"`
	LineOne    string  `json:"line_one"`
	LineTwo    *string `json:"line_two,omitempty"`
	PostalCode string  `json:"postal_code"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	Country    string  `json:"country"`
}

// Totals carries session amounts in minor currency units end-to-end; floats
// never enter the signed content.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// Extension is the ap2 block attached to checkout responses.
type Extension struct {
	// MerchantAuthorization is a detached JWS over the canonical session
	// with the ap2 field removed.
	MerchantAuthorization string `json:"merchant_authorization,omitempty"`
}

// PaymentAuthorization records the processor's decision on a completed session.
type PaymentAuthorization struct {
	AuthorizationID string `json:"authorization_id"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// CheckoutSession defines model for CheckoutSession.
type CheckoutSession struct {
	ID                 string                `json:"id"`
	Status             CheckoutSessionStatus `json:"status"`
	Currency           string                `json:"currency"`
	LineItems          []LineItem            `json:"line_items"`
	Buyer              *Buyer                `json:"buyer,omitempty"`
	FulfillmentAddress *Address              `json:"fulfillment_address,omitempty"`
	Totals             Totals                `json:"totals"`
	Messages           []Message             `json:"messages,omitempty"`
	Payment            *PaymentAuthorization `json:"payment,omitempty"`
	OrderID            *string               `json:"order_id,omitempty"`
	AP2                *Extension            `json:"ap2,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
}

// Message defines a union of MessageInfo and MessageError.
type Message struct {
	union json.RawMessage
}

// MessageInfo is informational content surfaced on a session.
type MessageInfo struct {
	Type        string             `json:"type"`
	Content     string             `json:"content"`
	ContentType MessageContentType `json:"content_type"`
}

// MessageError reports a problem with the session, such as a rejected mandate.
type MessageError struct {
	Type        string             `json:"type"`
	Code        MessageErrorCode   `json:"code"`
	Content     string             `json:"content"`
	ContentType MessageContentType `json:"content_type"`

	// Param RFC 9535 JSONPath
	Param *string `json:"param,omitempty"`
}

// AsMessageInfo returns the union data inside the Message as a MessageInfo.
func (t Message) AsMessageInfo() (MessageInfo, error) {
	var body MessageInfo
	err := json.Unmarshal(t.union, &body)
	return body, err
}

// FromMessageInfo overwrites any union data inside the Message as the provided MessageInfo.
func (t *Message) FromMessageInfo(v MessageInfo) error {
	v.Type = "info"
	b, err := json.Marshal(v)
	t.union = b
	return err
}

// MergeMessageInfo performs a merge with any union data inside the Message, using the provided MessageInfo.
func (t *Message) MergeMessageInfo(v MessageInfo) error {
	v.Type = "info"
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	merged, err := runtime.JSONMerge(t.union, b)
	t.union = merged
	return err
}

// AsMessageError returns the union data inside the Message as a MessageError.
func (t Message) AsMessageError() (MessageError, error) {
	var body MessageError
	err := json.Unmarshal(t.union, &body)
	return body, err
}

// FromMessageError overwrites any union data inside the Message as the provided MessageError.
func (t *Message) FromMessageError(v MessageError) error {
	v.Type = "error"
	b, err := json.Marshal(v)
	t.union = b
	return err
}

// MergeMessageError performs a merge with any union data inside the Message, using the provided MessageError.
func (t *Message) MergeMessageError(v MessageError) error {
	v.Type = "error"
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	merged, err := runtime.JSONMerge(t.union, b)
	t.union = merged
	return err
}

// MarshalJSON serializes the underlying union for Message.
func (t Message) MarshalJSON() ([]byte, error) {
	return t.union.MarshalJSON()
}

// UnmarshalJSON loads union data for Message.
func (t *Message) UnmarshalJSON(b []byte) error {
	return t.union.UnmarshalJSON(b)
}

// ItemRequest selects a catalog product and quantity.
type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CheckoutSessionCreateRequest defines model for CheckoutSessionCreateRequest.
type CheckoutSessionCreateRequest struct {
	Items []ItemRequest `json:"items"`
	Buyer *Buyer        `json:"buyer,omitempty"`
}

// CheckoutSessionUpdateRequest defines model for CheckoutSessionUpdateRequest.
type CheckoutSessionUpdateRequest struct {
	Buyer              *Buyer   `json:"buyer,omitempty"`
	FulfillmentAddress *Address `json:"fulfillment_address,omitempty"`
}

// PaymentData carries the payment credential presented at completion.
type PaymentData struct {
	Token    string `json:"token"`
	Provider string `json:"provider,omitempty"`
}

// CheckoutSessionCompleteRequest defines model for CheckoutSessionCompleteRequest.
type CheckoutSessionCompleteRequest struct {
	PaymentData PaymentData `json:"payment_data"`
	// CheckoutMandate is a platform-issued SD-JWT+kb scoped to this session.
	CheckoutMandate string `json:"checkout_mandate,omitempty"`
	// IntentMandate is a platform-issued SD-JWT+kb scoped to spending limits.
	IntentMandate string `json:"intent_mandate,omitempty"`
}
