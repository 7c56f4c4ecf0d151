package unit

import (
	"context"
	"testing"

	marketplaceservice "tokenmart/contexts/trading-core/marketplace-service"
	"tokenmart/contexts/trading-core/marketplace-service/application/workers"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
	httptransport "tokenmart/contexts/trading-core/marketplace-service/transport/http"
)

type capturingPublisher struct {
	topics    []string
	envelopes []ports.EventEnvelope
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.topics = append(p.topics, topic)
	p.envelopes = append(p.envelopes, event)
	return nil
}

func TestOutboxRelayPublishesPendingEvents(t *testing.T) {
	module := marketplaceservice.NewInMemoryModule(testOperator, nil)
	multiUnit := module.Ledgers.RegisterMultiUnit(testMultiContract)
	payment := module.Ledgers.RegisterPayment(testPaymentToken)
	multiUnit.Mint(testSeller, "7", 3)
	multiUnit.SetApprovalForAll(testSeller, testOperator, true)

	_, err := module.Handler.RegisterMultiUnitHandler(
		context.Background(),
		testSeller,
		"idem-relay-register",
		httptransport.RegisterMultiUnitRequest{
			AssetContract: testMultiContract,
			AssetID:       "7",
			Quantity:      3,
			UnitPrice:     2,
			PaymentToken:  testPaymentToken,
		},
	)
	if err != nil {
		t.Fatalf("register should succeed: %v", err)
	}

	payment.Mint(testBuyer, 10)
	payment.Approve(testBuyer, testOperator, 10)
	_, err = module.Handler.BuyHandler(
		context.Background(),
		testBuyer,
		"idem-relay-buy",
		httptransport.BuyListingRequest{
			PaymentToken: testPaymentToken,
			AssetID:      "7",
			Quantity:     1,
			OfferedTotal: 2,
		},
	)
	if err != nil {
		t.Fatalf("buy should succeed: %v", err)
	}

	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{
		Outbox:    module.Store,
		Publisher: publisher,
		Clock:     module.Store,
		Topic:     "marketplace.events",
		BatchSize: 10,
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run should succeed: %v", err)
	}

	if len(publisher.envelopes) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(publisher.envelopes))
	}
	if publisher.envelopes[0].EventType != "marketplace.token_registered" {
		t.Fatalf("expected token_registered first, got %s", publisher.envelopes[0].EventType)
	}
	if publisher.envelopes[1].EventType != "marketplace.token_purchased" {
		t.Fatalf("expected token_purchased second, got %s", publisher.envelopes[1].EventType)
	}
	for _, topic := range publisher.topics {
		if topic != "marketplace.events" {
			t.Fatalf("unexpected topic %s", topic)
		}
	}

	if got := module.Store.PendingOutboxCount(); got != 0 {
		t.Fatalf("expected outbox drained, got %d pending", got)
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("idle relay run should succeed: %v", err)
	}
	if len(publisher.envelopes) != 2 {
		t.Fatalf("sent rows must not republish, got %d events", len(publisher.envelopes))
	}
}
