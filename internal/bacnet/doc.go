// Package bacnet models the BACnet objects exposed by an Eclypse controller
// and caches their property values between polls.
//
// The cache has three layers:
//
//	Registry  object name ("analogValue_12") -> *Object
//	Object    property name ("presentValue") -> *Property
//	Property  cached value, pending write, read/write flags
//
// # Read path
//
// Every Property starts due (updateRequired). Building a read request emits
// one ReadDescriptor per due property. Static properties (objectName,
// description, propertyList, units) settle after their first emission and
// are never requested again. Dynamic properties stay due on every cycle.
//
//	fresh -> due -> requested -> static: settled | dynamic: due again
//
// Responses come back as PropertyValue tuples and are merged with
// Registry.Reconcile. Tuples naming an object or property the registry does
// not track are counted and dropped; reconciliation never creates objects.
//
// # Write path
//
//	clean -> dirty (Update) -> flushed (RequestWrite commits the value)
//
// # Persistence
//
// Export produces the persisted config-entry shape:
//
//	{name, href, properties: {propName: {property_type, instance,
//	 property_name, value, priority, arrayIndex, static, update_required}}}
//
// ImportObjects decodes the same shape from a generic map (for example one
// read back from JSON) using mapstructure.
//
// # Thread Safety
//
// Property and Object are not safe for concurrent use. Registry guards every
// object it owns with a single RWMutex, so callers sharing a cache between
// the poll loop, MQTT command handlers and the HTTP API go through Registry
// methods only.
package bacnet
