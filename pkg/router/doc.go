/*
Package router implements Skitter's emit router (spec.md §4.6): the C7
component that fans one emitted value out to every node+in-port a
workflow's Links or InPortLinks name for it, invoking each destination's
DeliverHook.

An out-port (or workflow in-port) with no registered destination drops
the value silently: this is spec'd behavior, not an error, but the
router still counts it via an EventDeliveryDropped notification so
pkg/metrics and logs can see it happen. One slow or broken destination's
DeliverHook failing never stops delivery to the rest of that value's
destinations.
*/
package router
