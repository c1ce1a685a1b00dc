package tools

import "time"

// EasyMODefinitions returns the standard easyMO tool catalog. Each tool maps
// to a remote function endpoint under baseURL; the backing business logic
// lives in those services, not here.
func EasyMODefinitions(baseURL string) []*Definition {
	endpoint := func(fn string) Target {
		return Target{Kind: TargetHTTP, Endpoint: baseURL + "/functions/" + fn}
	}
	return []*Definition{
		// Payments
		{
			Name:        "payment_qr_generate",
			Description: "Generate a mobile-money QR code and USSD string for receiving a payment.",
			Domain:      "payments",
			InputSchema: ObjectSchema(map[string]interface{}{
				"amount":      NumberProperty("Amount in RWF, must be positive"),
				"phone":       StringProperty("Payer or payee phone number"),
				"description": StringProperty("Optional payment note"),
			}, "amount", "phone"),
			Target:  endpoint("enhanced-qr-generator"),
			Timeout: 10 * time.Second,
		},
		{
			Name:        "payment_status_check",
			Description: "Check the status of a mobile-money transaction.",
			Domain:      "payments",
			InputSchema: ObjectSchema(map[string]interface{}{
				"transaction_id": StringProperty("Transaction or payment id"),
				"phone":          StringProperty("Optional phone number on the transaction"),
			}, "transaction_id"),
			Target:  endpoint("enhanced-payment-processor"),
			Timeout: 10 * time.Second,
		},

		// Mobility
		{
			Name:        "driver_trip_create",
			Description: "Publish a driver's trip offer with pickup coordinates.",
			Domain:      "moto",
			InputSchema: ObjectSchema(map[string]interface{}{
				"pickup_lat":      NumberProperty("Pickup latitude"),
				"pickup_lng":      NumberProperty("Pickup longitude"),
				"destination_lat": NumberProperty("Optional destination latitude"),
				"destination_lng": NumberProperty("Optional destination longitude"),
				"price_estimate":  NumberProperty("Fare estimate in RWF"),
				"seats":           IntegerProperty("Seats offered, default 1"),
			}, "pickup_lat", "pickup_lng"),
			Target:  endpoint("driver-trip-create"),
			Timeout: 10 * time.Second,
		},
		{
			Name:        "passenger_intent_create",
			Description: "Register a passenger's request for a ride.",
			Domain:      "moto",
			InputSchema: ObjectSchema(map[string]interface{}{
				"pickup_lat": NumberProperty("Pickup latitude"),
				"pickup_lng": NumberProperty("Pickup longitude"),
				"max_budget": NumberProperty("Maximum fare in RWF"),
				"seats":      IntegerProperty("Seats needed, default 1"),
			}, "pickup_lat", "pickup_lng"),
			Target:  endpoint("passenger-intent-create"),
			Timeout: 10 * time.Second,
		},
		{
			Name:        "nearby_search",
			Description: "Find nearby drivers or passengers around a point.",
			Domain:      "moto",
			InputSchema: ObjectSchema(map[string]interface{}{
				"lat":       NumberProperty("Latitude"),
				"lng":       NumberProperty("Longitude"),
				"radius_km": NumberProperty("Search radius in km, default 5"),
				"type":      StringEnumProperty("What to search for", "drivers", "passengers"),
				"limit":     IntegerProperty("Max results, default 10"),
			}, "lat", "lng"),
			Target:  endpoint("nearby-trips"),
			Timeout: 10 * time.Second,
		},

		// Listings
		{
			Name:        "listing_create",
			Description: "Publish a property or vehicle listing.",
			Domain:      "listings",
			InputSchema: ObjectSchema(map[string]interface{}{
				"type":        StringEnumProperty("Listing type", "property", "vehicle"),
				"title":       StringProperty("Listing title"),
				"price":       NumberProperty("Price in RWF"),
				"description": StringProperty("Optional description"),
				"location":    StringProperty("Optional location name"),
			}, "type", "title", "price"),
			Target:  endpoint("listing-publish"),
			Timeout: 10 * time.Second,
		},
		{
			Name:        "listing_search",
			Description: "Search published property or vehicle listings.",
			Domain:      "listings",
			InputSchema: ObjectSchema(map[string]interface{}{
				"type":      StringEnumProperty("Listing type", "property", "vehicle"),
				"query":     StringProperty("Free-text search query"),
				"price_min": NumberProperty("Minimum price"),
				"price_max": NumberProperty("Maximum price"),
				"location":  StringProperty("Location filter"),
				"limit":     IntegerProperty("Max results, default 10"),
			}, "type"),
			Target:  endpoint("listing-search"),
			Timeout: 10 * time.Second,
		},

		// Commerce
		{
			Name:        "order_create",
			Description: "Create an order for pharmacy, hardware, or bar items.",
			Domain:      "commerce",
			InputSchema: ObjectSchema(map[string]interface{}{
				"business_type":        StringEnumProperty("Kind of business", "pharmacy", "hardware", "bar", "produce"),
				"items":                ArrayProperty("Items to order", ObjectSchema(map[string]interface{}{})),
				"delivery_address":     StringProperty("Optional delivery address"),
				"special_instructions": StringProperty("Optional notes for the vendor"),
			}, "business_type", "items"),
			Target:  endpoint("create-unified-order"),
			Timeout: 15 * time.Second,
		},
		{
			Name:        "menu_fetch",
			Description: "Fetch a business's current menu.",
			Domain:      "commerce",
			InputSchema: ObjectSchema(map[string]interface{}{
				"business_id": StringProperty("Business identifier"),
				"table_code":  StringProperty("Optional table code for bars"),
				"category":    StringProperty("Optional category filter"),
			}, "business_id"),
			Target:  endpoint("generate-dynamic-menu"),
			Timeout: 10 * time.Second,
		},

		// Support
		{
			Name:        "handoff_create",
			Description: "Escalate the conversation to a human agent.",
			Domain:      "admin_support",
			InputSchema: ObjectSchema(map[string]interface{}{
				"reason":   StringProperty("Why the handoff is needed"),
				"priority": StringEnumProperty("Urgency", "low", "medium", "high"),
			}, "reason"),
			Target:  endpoint("human-handoff"),
			Timeout: 10 * time.Second,
		},
		{
			Name:        "ticket_log",
			Description: "Log a support ticket for later follow-up.",
			Domain:      "admin_support",
			InputSchema: ObjectSchema(map[string]interface{}{
				"type":    StringProperty("Ticket category"),
				"message": StringProperty("What the user reported"),
			}, "message"),
			Target:  endpoint("support-ticket-log"),
			Timeout: 10 * time.Second,
		},
	}
}

// DefaultVerifiedTools is the allow-list of tools with confirmed working
// backends. Tools outside this list route through the secondary registry.
func DefaultVerifiedTools() []string {
	return []string{
		"payment_qr_generate",
		"payment_status_check",
		"nearby_search",
		"listing_search",
		"menu_fetch",
	}
}
