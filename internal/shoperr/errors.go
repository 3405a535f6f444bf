// Package shoperr holds the domain error taxonomy. Services detect these
// synchronously and return them untouched to the transport layer; anything
// else (connectivity, constraint violations) passes through as an opaque
// infrastructure error.
package shoperr

import "fmt"

// NotFound: a referenced user, product, order or cart item does not exist.
type NotFound struct {
	Entity string
	ID     any
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// InsufficientStock carries the current stock and, on cart adds, the
// quantity already held in the cart so the caller can explain the shortfall.
type InsufficientStock struct {
	ProductID   int64
	ProductName string
	Stock       int
	Requested   int
	InCart      int
}

func (e *InsufficientStock) Error() string {
	if e.InCart > 0 {
		return fmt.Sprintf("insufficient stock for product %q: %d available, %d already in cart, %d requested",
			e.ProductName, e.Stock, e.InCart, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for product %q: %d available, %d requested",
		e.ProductName, e.Stock, e.Requested)
}

// EmptyCart: order creation attempted with no cart lines.
type EmptyCart struct {
	UserID int64
}

func (e *EmptyCart) Error() string {
	return fmt.Sprintf("cart for user %d is empty", e.UserID)
}

// Forbidden: the actor is not authorized for the requested mutation.
type Forbidden struct {
	Reason string
}

func (e *Forbidden) Error() string { return e.Reason }

// InvalidState: a status transition or deletion violates the state machine,
// or an operation targets a product in the wrong listing state.
type InvalidState struct {
	Reason string
}

func (e *InvalidState) Error() string { return e.Reason }

// Duplicate: a uniqueness violation on a user-facing name.
type Duplicate struct {
	Entity string
	Name   string
}

func (e *Duplicate) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Name)
}
