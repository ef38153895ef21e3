/*
Package hce answers command APDUs on behalf of an emulated payment card.

Each inbound command is classified by prefix into one of a closed set of
kinds, and answered synchronously:

	SELECT AID   (00 A4 04 00 07 ...)  -> 90 00
	READ RECORD  (00 B2 ...)           -> card data ++ 90 00
	GET DATA     (80 CA ...)           -> card data ++ 90 00
	VERIFY PIN   (00 20 00 80 ...)     -> 90 00
	anything else                      -> 6A 81

The card data block is 5A (PAN) ++ 5F20 (cardholder name) ++ 5F24 (expiry,
YYMM), built from a profile.Profile by package emv.

Classify and Respond are pure. A Responder binds them to one profile and one
session and adds logging, optional strict AID matching and optional SELECT
gating.
*/
package hce
