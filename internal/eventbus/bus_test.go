package eventbus

import "testing"

func TestPublishRoutesByCategory(t *testing.T) {
	bus := New()
	goods := make(chan Notification, 1)
	other := make(chan Notification, 1)
	bus.Subscribe("goods", goods)
	bus.Subscribe("rail", other)

	bus.Publish(Notification{Category: "goods", Subject: "s"})

	select {
	case n := <-goods:
		if n.Subject != "s" {
			t.Errorf("notification = %+v", n)
		}
	default:
		t.Fatal("goods subscriber got nothing")
	}
	select {
	case n := <-other:
		t.Errorf("rail subscriber got %+v", n)
	default:
	}
}

func TestWildcardSubscriberSeesEverything(t *testing.T) {
	bus := New()
	all := make(chan Notification, 2)
	bus.Subscribe(All, all)

	bus.Publish(Notification{Category: "goods"})
	bus.Publish(Notification{Category: "rail"})

	if len(all) != 2 {
		t.Errorf("wildcard received %d notifications, want 2", len(all))
	}
}

func TestPublishNeverBlocksOnFullChannel(t *testing.T) {
	bus := New()
	full := make(chan Notification) // unbuffered, no reader
	bus.Subscribe("goods", full)

	done := make(chan struct{})
	go func() {
		bus.Publish(Notification{Category: "goods"})
		close(done)
	}()
	<-done
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	ch := make(chan Notification, 1)
	bus.Subscribe("goods", ch)
	bus.Unsubscribe("goods", ch)

	bus.Publish(Notification{Category: "goods"})
	if len(ch) != 0 {
		t.Error("unsubscribed channel still received a notification")
	}
}

func TestCloseDropsFurtherPublishes(t *testing.T) {
	bus := New()
	ch := make(chan Notification, 1)
	bus.Subscribe("goods", ch)
	bus.Close()

	bus.Publish(Notification{Category: "goods"})
	if len(ch) != 0 {
		t.Error("publish after Close still delivered")
	}
}
