package main

import (
	"fmt"
	"log"

	"github.com/staynest/hostel-booking-backend/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for StayNest")
	fmt.Println("===========================================")
	fmt.Println()

	secrets, err := utils.GenerateSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Secrets generated successfully!")
	fmt.Println()
	fmt.Println("Add these to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secrets.JWTAccess)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", secrets.JWTRefresh)
	fmt.Printf("PAYMENT_WEBHOOK_SECRET=%s\n", secrets.PaymentWebhook)
	fmt.Println()
	fmt.Println("PAYMENT_KEY_SECRET comes from the payment gateway dashboard and is not generated here.")
	fmt.Println("IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
