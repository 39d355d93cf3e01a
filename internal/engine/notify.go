package engine

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"server/internal/domain"
)

var (
	printerID = message.NewPrinter(language.Indonesian)
	printerEN = message.NewPrinter(language.English)
)

// notificationCopy builds the localized title and message recorded for a
// transition into target. Amounts are integer rupiah and formatted with
// the locale's digit grouping.
func notificationCopy(locale string, target domain.TransactionStatus, amount int64) (title, body string) {
	if locale == "id" {
		switch target {
		case domain.StatusCompleted:
			return "Pembayaran Berhasil", printerID.Sprintf("Pembayaran Anda sebesar Rp %d telah berhasil.", amount)
		case domain.StatusFailed:
			return "Pembayaran Gagal", printerID.Sprintf("Pembayaran Anda sebesar Rp %d gagal diproses.", amount)
		case domain.StatusCancelled:
			return "Pembayaran Dibatalkan", printerID.Sprintf("Pembayaran Anda sebesar Rp %d telah dibatalkan.", amount)
		case domain.StatusProcessing:
			return "Pembayaran Diproses", printerID.Sprintf("Pembayaran Anda sebesar Rp %d sedang ditinjau.", amount)
		}
		return "Pembayaran Diperbarui", printerID.Sprintf("Status pembayaran Anda sebesar Rp %d telah diperbarui.", amount)
	}

	switch target {
	case domain.StatusCompleted:
		return "Payment Successful", printerEN.Sprintf("Your payment of Rp %d was successful.", amount)
	case domain.StatusFailed:
		return "Payment Failed", printerEN.Sprintf("Your payment of Rp %d could not be processed.", amount)
	case domain.StatusCancelled:
		return "Payment Cancelled", printerEN.Sprintf("Your payment of Rp %d was cancelled.", amount)
	case domain.StatusProcessing:
		return "Payment Under Review", printerEN.Sprintf("Your payment of Rp %d is being reviewed.", amount)
	}
	return "Payment Updated", printerEN.Sprintf("The status of your payment of Rp %d changed.", amount)
}
