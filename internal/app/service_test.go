package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leadfuel/pixelbridge/internal/app"
	"github.com/leadfuel/pixelbridge/internal/capi"
	"github.com/leadfuel/pixelbridge/internal/domain/model"
	"github.com/leadfuel/pixelbridge/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// platformStub fakes a Conversions API endpoint that acknowledges every
// batch it receives and counts the calls.
type platformStub struct {
	srv   *httptest.Server
	calls atomic.Int64
	last  atomic.Value // []byte of the last request body
}

func newPlatformStub() *platformStub {
	p := &platformStub{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		var env struct {
			Data []json.RawMessage `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&env)
		if len(env.Data) > 0 {
			p.last.Store([]byte(env.Data[0]))
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"events_received": len(env.Data)})
	}))
	return p
}

func (p *platformStub) client() *capi.Client {
	return capi.New(
		capi.WithBaseURL(p.srv.URL),
		capi.WithCredentials("pixel-1", "token-1"),
		capi.WithRetryDelay(time.Millisecond),
	)
}

func (p *platformStub) lastEvent(t *testing.T) model.PreparedEvent {
	t.Helper()
	raw, _ := p.last.Load().([]byte)
	var ev model.PreparedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode delivered event: %v", err)
	}
	return ev
}

func startService(t *testing.T, opts ...app.Option) *app.Service {
	t.Helper()
	svc := app.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func page() app.PageData {
	return app.PageData{
		URL:       "https://shop.example.com/checkout",
		Domain:    "shop.example.com",
		IPAddress: "203.0.113.9",
		UserAgent: "Mozilla/5.0",
	}
}

func TestPurchaseFlow(t *testing.T) {
	Convey("Given a started service backed by an acknowledging platform", t, func() {
		stub := newPlatformStub()
		defer stub.srv.Close()
		frozen := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
		svc := startService(t,
			app.WithDelivery(stub.client()),
			app.WithClock(func() time.Time { return frozen }),
		)
		ctx := context.Background()

		purchase := app.PurchaseData{
			TransactionID: "order-789",
			Value:         149.90,
			Customer:      model.CustomerFields{Email: "buyer@example.com"},
			Products:      []model.Product{{ID: "sku-1", Name: "Starter Plan", Price: 149.90}},
		}

		Convey("When a purchase is processed", func() {
			res := svc.ProcessPurchase(ctx, "sess-1", purchase, page())

			Convey("Then it is delivered exactly once", func() {
				So(res.Success, ShouldBeTrue)
				So(res.Facebook.Success, ShouldBeTrue)
				So(res.Facebook.Duplicate, ShouldBeFalse)
				So(res.Facebook.EventID, ShouldNotBeEmpty)
				So(stub.calls.Load(), ShouldEqual, 1)
			})

			Convey("Then the wire event carries the mapped name and hashed identity", func() {
				ev := stub.lastEvent(t)
				So(ev.EventName, ShouldEqual, "Purchase")
				So(ev.ActionSource, ShouldEqual, "website")
				So(ev.UserData.Email, ShouldHaveLength, 64)
				So(ev.CustomData.OrderID, ShouldEqual, "order-789")
				So(ev.CustomData.Value, ShouldEqual, 149.90)
			})

			Convey("And when the same purchase arrives again within the window", func() {
				again := svc.ProcessPurchase(ctx, "sess-1", purchase, page())

				Convey("Then it is a success no-op with a single outbound call", func() {
					So(again.Success, ShouldBeTrue)
					So(again.Facebook.Duplicate, ShouldBeTrue)
					So(stub.calls.Load(), ShouldEqual, 1)
				})
			})
		})

		Convey("When a purchase is missing its transaction id", func() {
			bad := purchase
			bad.TransactionID = ""
			res := svc.ProcessPurchase(ctx, "sess-2", bad, page())

			Convey("Then the pipeline rejects it before delivery", func() {
				So(res.Success, ShouldBeFalse)
				So(res.Facebook.Error, ShouldContainSubstring, "transaction_id")
				So(stub.calls.Load(), ShouldEqual, 0)
			})

			Convey("And a corrected retry is not treated as a duplicate", func() {
				fixed := svc.ProcessPurchase(ctx, "sess-2", purchase, page())
				So(fixed.Success, ShouldBeTrue)
				So(fixed.Facebook.Duplicate, ShouldBeFalse)
				So(stub.calls.Load(), ShouldEqual, 1)
			})
		})
	})
}

func TestAttributionBridge(t *testing.T) {
	Convey("Given a session that landed with campaign parameters", t, func() {
		stub := newPlatformStub()
		defer stub.srv.Close()
		svc := startService(t, app.WithDelivery(stub.client()))
		ctx := context.Background()

		utm := model.AttributionFields{
			Source:   "facebook",
			Medium:   "cpc",
			Campaign: "promo-sept",
			ClickID:  "IwAR456",
		}
		svc.ProcessPageView(ctx, "sess-3", page(), utm)

		Convey("When a later purchase arrives without UTM data", func() {
			res := svc.ProcessPurchase(ctx, "sess-3", app.PurchaseData{
				TransactionID: "order-1",
				Value:         50,
				Customer:      model.CustomerFields{Email: "buyer@example.com"},
			}, page())

			Convey("Then the stored attribution rides along", func() {
				So(res.Success, ShouldBeTrue)
				So(res.UTM.Source, ShouldEqual, "facebook")
				So(res.UTM.Campaign, ShouldEqual, "promo-sept")

				ev := stub.lastEvent(t)
				So(ev.CustomData.UTMSource, ShouldEqual, "facebook")
				So(ev.CustomData.UTMMedium, ShouldEqual, "cpc")
				So(ev.UserData.FBC, ShouldStartWith, "fb.2.")
				So(ev.UserData.FBC, ShouldEndWith, ".IwAR456")
			})
		})

		Convey("When a page view has no campaign parameters at all", func() {
			res := svc.ProcessPageView(ctx, "sess-4", page(), model.AttributionFields{})

			Convey("Then the fallback attribution applies", func() {
				So(res.UTM.Source, ShouldEqual, "direct")
				So(res.UTM.Medium, ShouldEqual, "organic")
				So(res.UTM.Campaign, ShouldEqual, "none")
			})
		})
	})
}

func TestLeadEnrichment(t *testing.T) {
	Convey("Given a session with a captured lead", t, func() {
		stub := newPlatformStub()
		defer stub.srv.Close()
		svc := startService(t, app.WithDelivery(stub.client()))
		ctx := context.Background()

		svc.ProcessLead(ctx, "sess-5", model.CustomerFields{
			Email: "lead@example.com",
			Phone: "+55 11 98765-4321",
		}, page())
		So(stub.calls.Load(), ShouldEqual, 1)

		Convey("When a later event arrives without customer fields", func() {
			res := svc.ProcessCheckoutStart(ctx, "sess-5", app.CheckoutData{Value: 99}, page())

			Convey("Then the stored identity enriches the outbound event", func() {
				So(res.Success, ShouldBeTrue)
				ev := stub.lastEvent(t)
				So(ev.EventName, ShouldEqual, "InitiateCheckout")
				So(ev.UserData.Email, ShouldHaveLength, 64)
				So(ev.UserData.Phone, ShouldHaveLength, 64)
			})
		})
	})
}

func TestUnconfiguredDelivery(t *testing.T) {
	Convey("Given a service whose delivery client has no credentials", t, func() {
		svc := startService(t, app.WithDelivery(capi.New()))
		ctx := context.Background()

		Convey("When a page view is processed", func() {
			res := svc.ProcessPageView(ctx, "sess-6", page(), model.AttributionFields{})

			Convey("Then the call fails gracefully instead of crashing", func() {
				So(res.Success, ShouldBeFalse)
				So(res.Facebook.Error, ShouldContainSubstring, "not configured")
			})
		})
	})
}

func TestServiceStats(t *testing.T) {
	Convey("Given a started service with recorded activity", t, func() {
		stub := newPlatformStub()
		defer stub.srv.Close()
		svc := startService(t, app.WithDelivery(stub.client()))
		ctx := context.Background()

		svc.ProcessPageView(ctx, "sess-7", page(), model.AttributionFields{})
		svc.ProcessPageView(ctx, "sess-8", page(), model.AttributionFields{})

		Convey("When stats are requested", func() {
			stats := svc.GetStats()

			Convey("Then session and dedup counts are reported", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["sessionCount"], ShouldEqual, 2)
				So(stats["dedupeSize"], ShouldBeGreaterThanOrEqualTo, 2)
			})
		})
	})
}
