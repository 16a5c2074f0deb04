// Package messages defines the unit message envelope exchanged between the
// commander and the units, and the typed envelopes built on it.
//
// An envelope is addressed by a topic fixed at construction time. Only the
// unit ID and the payload travel in the JSON body:
//
//	{"unit id": "rover-1", "payload": {"angle": -12.5}}
//
// A receiver rebuilds the envelope shell from the topic it subscribed on
// (see UnitFromTopic) and folds the body in with Deserialize.
package messages
