package models

import (
	"log"

	"github.com/blomoto/garage_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{}, &Garage{},
		&Appointment{},
		&Quote{}, &QuoteItem{},
		&Invoice{}, &InvoiceItem{},
		&GeneratedDocument{},
		&PaymentTransaction{}, &WebhookEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
