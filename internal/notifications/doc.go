// Package notifications delivers student messages and operator alerts.
//
// Student messages go through the Service interface and are sent by ntfy
// (using its email forwarding header) or SMTP depending on
// notifications.channel. Operator alerts go through Alerter and publish to the
// ntfy alert topic. Both degrade to no-ops when not configured.
package notifications
