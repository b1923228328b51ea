package mqtt

import (
	"fmt"
	"sort"
)

// Subscribe registers handler for filter and waits for the broker's ack.
//
// Filters may use "+" for one level and a trailing "#" for the rest.
// A filter subscribed twice keeps only the latest handler. Subscriptions
// are replayed on every reconnect.
//
//	err := client.Subscribe("home/+/set", 0, func(topic string, payload []byte) error {
//	    return nil
//	})
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	if err := ValidateTopicFilter(filter); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(filter, qos, c.wrapHandler(handler))
	if err := await(token, defaultOperationTimeout, ErrSubscribeFailed); err != nil {
		return err
	}

	c.subMu.Lock()
	c.subscriptions[filter] = subscription{filter: filter, qos: qos, handler: handler}
	c.subMu.Unlock()
	return nil
}

// Unsubscribe removes filter. It is forgotten locally even if the broker
// does not acknowledge, so it is not replayed on reconnect.
func (c *Client) Unsubscribe(filter string) error {
	if err := ValidateTopicFilter(filter); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subscriptions, filter)
	c.subMu.Unlock()

	return await(c.client.Unsubscribe(filter), defaultOperationTimeout, ErrUnsubscribeFailed)
}

// Subscriptions returns the tracked filters in sorted order.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	filters := make([]string, 0, len(c.subscriptions))
	for f := range c.subscriptions {
		filters = append(filters, f)
	}
	c.subMu.RUnlock()

	sort.Strings(filters)
	return filters
}

// HasSubscription reports whether filter is tracked. It compares filter
// strings, not topic matches.
func (c *Client) HasSubscription(filter string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[filter]
	return ok
}

// restoreSubscriptions replays every tracked filter after a reconnect.
// paho runs the connect handler on its own goroutine, so waiting here does
// not stall the network loop.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		token := c.client.Subscribe(sub.filter, sub.qos, c.wrapHandler(sub.handler))
		if err := await(token, defaultOperationTimeout, ErrSubscribeFailed); err != nil {
			c.stats.restoreFailures.Add(1)
			c.logWarn("MQTT resubscribe failed", "filter", sub.filter, "error", err)
		}
	}
}
