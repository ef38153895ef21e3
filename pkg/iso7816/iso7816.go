/*
Package iso7816 implements the ISO/IEC 7816-4 APDU layer shared by both sides of
a contactless payment exchange: the terminal probe that drives a card, and the
emulated card that answers it.

# Fundamentals

The exchange is strictly synchronous:
 1. The terminal sends a Command APDU (Header + Optional Body).
 2. The card returns a Response APDU (Optional Body + Trailer SW1/SW2).

CommandAPDU encodes and parses the four ISO 7816-3 cases in Short and Extended
form. ResponseAPDU.Bytes renders Data ++ SW1 ++ SW2, which is what an emulated
card puts on the wire.

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, XX bytes still available.
  - 0x6CXX: Wrong length expectation, XX is the correct Le.
  - 0x6A81: Function not supported.

# Terminal Side

Client follows 61XX and 6CXX on its own and returns the Trace of every
exchange. Report renders a Trace for humans:

	client := iso7816.NewClient(card)
	trace, err := client.Send(iso7816.SelectByAID(iso7816.MustClass(0x00), aid))
	if err != nil {
	    log.Fatal(err)
	}

	report, _ := iso7816.NewReport(trace)
	fmt.Println(report.Describe(nil))

# Card Side

ParseCommandAPDU decodes what a reader sent. Selection, RecordRef and
DataObjectTag read back the P1-P2 of SELECT, READ RECORD and GET DATA.
*/
package iso7816
