// Package entity derives Home Assistant style read models from a BACnet
// registry: one climate entity for the controller's room sensors, a sensor
// per analog or multi-state object, a binary sensor per binary object, and
// a diagnostic sensor for controller request latency.
//
// Models are plain structs rebuilt from the registry on demand; nothing here
// holds state between polls. DiscoveryConfigs turns a Set into Home
// Assistant MQTT discovery payloads pointing at the bridge's state topics.
package entity
