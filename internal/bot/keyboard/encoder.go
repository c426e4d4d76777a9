package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CallbackDataSeparator  = ":"
	CallbackDataLimitBytes = 64
)

// Callback identifiers. The order id or offer reference travels as data after the separator.
const (
	CallbackMenu     = "menu"
	CallbackCategory = "cat"
	CallbackGroup    = "grp"
	CallbackOffer    = "offer"
	CallbackTopUp    = "topup"
	CallbackApprove  = "ord_ok"
	CallbackReject   = "ord_no"
	CallbackPending  = "pending"
)

// OfferRefSeparator joins category and key inside offer callback data.
const OfferRefSeparator = "|"

func EncodeCallback(unique, data string) (string, error) {
	if data == "" {
		if len(unique) > CallbackDataLimitBytes {
			return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(unique))
		}
		return unique, nil
	}

	payload := unique + CallbackDataSeparator + data
	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

func DecodeCallback(callbackData string) (unique, data string, err error) {
	// telebot prefixes data of buttons built with Unique
	callbackData = strings.TrimPrefix(callbackData, "\f")
	if callbackData == "" {
		return "", "", errors.New("callback data is empty")
	}

	idx := strings.Index(callbackData, CallbackDataSeparator)
	if idx == -1 {
		return callbackData, "", nil
	}

	return callbackData[:idx], callbackData[idx+len(CallbackDataSeparator):], nil
}

// OfferRef joins category and key for an offer callback.
func OfferRef(category, key string) string {
	return category + OfferRefSeparator + key
}

// ParseOfferRef splits offer callback data into category and key.
func ParseOfferRef(data string) (category, key string, err error) {
	category, key, found := strings.Cut(data, OfferRefSeparator)
	if !found || category == "" || key == "" {
		return "", "", fmt.Errorf("malformed offer reference %q", data)
	}
	return category, key, nil
}
