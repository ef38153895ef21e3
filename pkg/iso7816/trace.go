package iso7816

// A Transaction is one C-APDU and the R-APDU that answered it.
// A Trace is the ordered list of Transactions behind one logical command;
// it is longer than one entry when the card answered 61XX or 6CXX.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess reports whether the response exists and carries a success status.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is a sequence of transactions (Command-Response pairs).
type Trace []Transaction

// First returns the transaction that carried the original command.
func (t Trace) First() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[0]
}

// Last returns the final transaction of the trace.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks the FINAL transaction only; intermediate 61XX do not count.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Status returns the final status word, or 0 for an empty trace.
func (t Trace) Status() StatusWord {
	last := t.Last()
	if last == nil || last.Response == nil {
		return 0
	}
	return last.Response.Status
}

// Data returns the response body of the final transaction.
func (t Trace) Data() []byte {
	last := t.Last()
	if last == nil || last.Response == nil {
		return nil
	}
	return last.Response.Data
}
