package service

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tag rules and reports every failing field.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Internal(err)
	}

	details := make([]errors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		details = append(details, errors.FieldError{Field: field, Message: fieldMessage(field, fe)})
	}
	return errors.NewValidationErrors(details)
}

// fieldPath drops the struct name: "CreateOrderRequest.items[0].quantity" -> "items[0].quantity".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return field + " is invalid"
	}
}

// ValidateCreateOrderRequest checks the shape of an order before any stock
// is looked at.
func ValidateCreateOrderRequest(req *models.CreateOrderRequest, limits config.OrderLimits) error {
	if err := validateStruct(req); err != nil {
		return err
	}

	details := make([]errors.FieldError, 0)

	if len(req.Items) > limits.MaxDistinctItems {
		details = append(details, errors.FieldError{
			Field:   "items",
			Message: fmt.Sprintf("an order may contain at most %d products", limits.MaxDistinctItems),
		})
	}

	seen := make(map[int64]bool, len(req.Items))
	total := 0
	for i, item := range req.Items {
		if seen[item.ProductID] {
			details = append(details, errors.FieldError{
				Field:   fmt.Sprintf("items[%d].product_id", i),
				Message: fmt.Sprintf("product %d appears more than once", item.ProductID),
			})
		}
		seen[item.ProductID] = true

		if item.Quantity > limits.MaxItemQuantity {
			details = append(details, errors.FieldError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: fmt.Sprintf("quantity must be at most %d", limits.MaxItemQuantity),
			})
		}
		if item.Price != nil {
			details = append(details, errors.FieldError{
				Field:   fmt.Sprintf("items[%d].price", i),
				Message: "price is taken from the catalog and must not be sent",
			})
		}
		total += item.Quantity
	}

	if total > limits.MaxTotalQuantity {
		details = append(details, errors.FieldError{
			Field:   "items",
			Message: fmt.Sprintf("total quantity must be at most %d", limits.MaxTotalQuantity),
		})
	}

	if len(details) > 0 {
		return errors.NewValidationErrors(details)
	}
	return nil
}

// ValidateProductPrice checks a catalog price.
func ValidateProductPrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return errors.NewValidationError("price", "price must be greater than 0")
	}
	if price.Exponent() < -2 && !price.Equal(price.Round(2)) {
		return errors.NewValidationError("price", "price may have at most 2 decimal places")
	}
	return nil
}

// ValidateRatingValue checks a rating is between 1 and 5.
func ValidateRatingValue(rating int) error {
	if rating < 1 || rating > 5 {
		return errors.NewValidationError("rating", "rating must be between 1 and 5")
	}
	return nil
}
