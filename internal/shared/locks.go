package shared

import "fmt"

// ReceiptLockKey builds the redis key guarding the post of a single goods receipt.
func ReceiptLockKey(receiptID int64) string {
	return fmt.Sprintf("receiving:grn:%d:lock", receiptID)
}

// IdempotencyKey builds the key recorded when a goods receipt is posted.
func IdempotencyKey(number string) string {
	return fmt.Sprintf("GRN:%s", number)
}
