package mqtt

import "fmt"

// Subscribe registers handler for topic and waits for the broker's ack.
//
// Wildcards are supported:
//   - + (single-level): "eclypse/command/+/+/presentValue"
//   - # (multi-level): "eclypse/command/#"
//
// A successful subscription is remembered and restored after every
// reconnect. A failed one is forgotten.
//
// Parameters:
//   - topic: Topic filter, may contain wildcards
//   - qos: Maximum QoS for delivered messages (0, 1, or 2)
//   - handler: Called for each message; panics are recovered and logged
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS or ErrNotConnected for bad calls,
//     ErrSubscribeFailed if the broker does not acknowledge in time
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	var err error
	if !token.WaitTimeout(publishTimeout) {
		err = fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, publishTimeout)
	} else if tokErr := token.Error(); tokErr != nil {
		err = fmt.Errorf("%w: %w", ErrSubscribeFailed, tokErr)
	}
	if err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe removes the subscription for topic.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}
