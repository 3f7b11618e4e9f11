package ap2

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures CheckoutSessionCreateRequest satisfies required schema constraints.
func (r CheckoutSessionCreateRequest) Validate() error {
	if len(r.Items) == 0 {
		return errors.New("items must contain at least one entry")
	}
	for i, item := range r.Items {
		if item.ProductID == "" {
			return fmt.Errorf("items[%d]: product_id is required", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("items[%d]: quantity must be positive", i)
		}
	}
	if r.Buyer != nil {
		return r.Buyer.validate()
	}
	return nil
}

// Validate ensures CheckoutSessionUpdateRequest maintains schema constraints.
func (r CheckoutSessionUpdateRequest) Validate() error {
	if r.Buyer != nil {
		if err := r.Buyer.validate(); err != nil {
			return err
		}
	}
	if r.FulfillmentAddress != nil {
		a := r.FulfillmentAddress
		if a.LineOne == "" || a.City == "" || a.PostalCode == "" || a.Country == "" {
			return errors.New("fulfillment_address requires line_one, city, postal_code, and country")
		}
	}
	return nil
}

// Validate ensures CheckoutSessionCompleteRequest satisfies payment and
// mandate requirements.
func (r CheckoutSessionCompleteRequest) Validate() error {
	if r.PaymentData.Token == "" {
		return errors.New("payment_data.token is required")
	}
	if r.CheckoutMandate != "" && !looksLikeMandate(r.CheckoutMandate) {
		return errors.New("checkout_mandate is not a credential")
	}
	if r.IntentMandate != "" && !looksLikeMandate(r.IntentMandate) {
		return errors.New("intent_mandate is not a credential")
	}
	return nil
}

// looksLikeMandate is a cheap shape check; real verification happens in the
// Verifier with typed rejections.
func looksLikeMandate(s string) bool {
	return strings.Contains(s, "~")
}

func (b *Buyer) validate() error {
	if b.FirstName == "" || b.LastName == "" || b.Email == "" {
		return errors.New("buyer requires first_name, last_name, and email")
	}
	return nil
}
