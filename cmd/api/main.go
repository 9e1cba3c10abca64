package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tkabwe/subcycle-backend/internal/modules/auth"
	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
	"github.com/tkabwe/subcycle-backend/internal/modules/cycle"
	"github.com/tkabwe/subcycle-backend/internal/modules/delivery"
	"github.com/tkabwe/subcycle-backend/internal/modules/payment"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Successfully connected to the database!")

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	// ── Phase 1: Auth ───────────────────────────────────────
	authService := auth.NewService([]byte(os.Getenv("JWT_SECRET")), apiClients())
	auth.NewHandler(authService).RegisterRoutes(router)

	// ── Phase 2: Payment Instruments ────────────────────────
	vaultGateways := payment.GatewayRegistry{
		payment.ProviderCard: payment.NewCardVaultGateway(
			os.Getenv("CARD_VAULT_API_KEY"),
			os.Getenv("CARD_VAULT_BASE_URL"),
			os.Getenv("CARD_VAULT_ENV"),
		),
		payment.ProviderPayPal: payment.NewWalletVaultGateway(
			payment.ProviderPayPal,
			os.Getenv("PAYPAL_CLIENT_ID"),
			os.Getenv("PAYPAL_CLIENT_SECRET"),
			os.Getenv("PAYPAL_ENV"),
		),
		payment.ProviderApplePay: payment.NewWalletVaultGateway(
			payment.ProviderApplePay, "", "", os.Getenv("WALLET_ENV"),
		),
		payment.ProviderGooglePay: payment.NewWalletVaultGateway(
			payment.ProviderGooglePay, "", "", os.Getenv("WALLET_ENV"),
		),
	}
	paymentRepo := payment.NewPostgresRepository(db)
	paymentService := payment.NewService(paymentRepo, vaultGateways)

	// ── Phase 3: Contracts & Billing Cycles ─────────────────
	contractRepo := contract.NewPostgresRepository(db)
	cycleRepo := cycle.NewPostgresRepository(db)
	contractService := contract.NewService(contractRepo, cycleRepo, cycle.NewScheduler(cycleRepo), paymentService)
	cycleService := cycle.NewService(cycleRepo, contractService, envInt("BILLING_FAILURE_THRESHOLD", 3))

	// ── Phase 4: Delivery Options ───────────────────────────
	currency := envOr("CURRENCY", "USD")
	rateSources := delivery.RateSourceRegistry{
		contract.DeliveryShipping: delivery.NewFlatRateShippingSource(
			currency,
			envOr("SHIPPING_HOME_COUNTRY", "US"),
			decimal.NewFromInt(int64(envInt("SHIPPING_DOMESTIC_RATE", 5))),
			decimal.NewFromInt(int64(envInt("SHIPPING_OVERSEAS_RATE", 20))),
		),
		contract.DeliveryLocalDelivery: delivery.NewLocalDeliverySource(
			currency,
			decimal.NewFromInt(int64(envInt("LOCAL_DELIVERY_FEE", 3))),
			strings.Split(envOr("LOCAL_DELIVERY_CITIES", ""), ",")...,
		),
		contract.DeliveryPickup: delivery.NewPickupLocationSource(currency, pickupLocations()),
	}

	tokenStore := delivery.NewMemoryTokenStore()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		})
		tokenStore = delivery.NewRedisTokenStore(rdb)
		fmt.Println("Delivery quote tokens backed by Redis")
	}
	quoteTTL := time.Duration(envInt("DELIVERY_QUOTE_TTL_MINUTES", 10)) * time.Minute
	deliveryService := delivery.NewService(contractService, rateSources, tokenStore, quoteTTL)

	// ── Phase 5: Protected API surface ──────────────────────
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(authService))
		contract.NewHandler(contractService).RegisterRoutes(r)
		cycle.NewHandler(cycleService).RegisterRoutes(r)
		delivery.NewHandler(deliveryService).RegisterRoutes(r)
		payment.NewHandler(paymentService).RegisterRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("Subcycle API server starting on :%s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}

// apiClients reads the static API client registry: API_CLIENT_ID plus the
// bcrypt hash of its secret in API_CLIENT_SECRET_HASH.
func apiClients() map[string]string {
	clients := map[string]string{}
	if id := os.Getenv("API_CLIENT_ID"); id != "" {
		clients[id] = os.Getenv("API_CLIENT_SECRET_HASH")
	}
	return clients
}

// pickupLocations parses PICKUP_LOCATIONS entries "id|name|city|country",
// separated by semicolons.
func pickupLocations() []delivery.PickupLocation {
	var locations []delivery.PickupLocation
	for _, entry := range strings.Split(os.Getenv("PICKUP_LOCATIONS"), ";") {
		parts := strings.Split(entry, "|")
		if len(parts) != 4 {
			continue
		}
		locations = append(locations, delivery.PickupLocation{
			ID:          parts[0],
			Name:        parts[1],
			City:        parts[2],
			CountryCode: parts[3],
		})
	}
	return locations
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
