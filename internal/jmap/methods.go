package jmap

import (
	"encoding/json"
	"fmt"
)

// decodeMethodArguments dispatches on (function, object) and decodes that
// call's arguments object. p.ctx has already
// been set to object by the caller.
func (p *parser) decodeMethodArguments(fn MethodFunction, obj MethodObject) (RequestMethod, *MethodError) {
	switch fn {
	case FuncEcho:
		return p.decodeEcho()
	case FuncGet:
		return p.decodeGet(obj)
	case FuncQuery:
		return p.decodeQuery(obj)
	case FuncSet:
		return p.decodeSet(obj)
	case FuncChanges:
		return p.decodeChanges(obj)
	case FuncQueryChanges:
		return p.decodeQueryChanges(obj)
	case FuncCopy:
		if obj == ObjBlob {
			return p.decodeCopyBlob()
		}
		return p.decodeCopy()
	case FuncImport:
		if obj == ObjEmail {
			return p.decodeImportEmail()
		}
		return nil, unknownMethodError(fmt.Sprintf("%s/import", obj))
	case FuncParse:
		if obj == ObjEmail {
			return p.decodeParseEmail()
		}
		return nil, unknownMethodError(fmt.Sprintf("%s/parse", obj))
	case FuncValidate:
		if obj == ObjSieveScript {
			return p.decodeValidateSieveScript()
		}
		return nil, unknownMethodError(fmt.Sprintf("%s/validate", obj))
	}
	return nil, unknownMethodError("unrecognized method function")
}

// decodeEcho reflects the raw argument object verbatim; Core/echo performs
// no schema validation.
func (p *parser) decodeEcho() (RequestMethod, *MethodError) {
	raw, err := p.captureRawValue()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	return &EchoMethod{Arguments: raw}, nil
}

// captureRawValue re-encodes the next JSON value from tokens back into a
// json.RawMessage. Used only for arguments the core does not need to
// interpret (Core/echo payloads), keeping their exact shape for round-trip.
func (p *parser) captureRawValue() (json.RawMessage, error) {
	v, err := p.decodeAny()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (p *parser) decodeAny() (interface{}, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokDictStart:
		m := make(map[string]interface{})
		for {
			if p.isDictEnd() {
				break
			}
			k, err := p.nextDictKeyRaw()
			if err != nil {
				return nil, err
			}
			v, err := p.decodeAny()
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	case TokArrayStart:
		var arr []interface{}
		for {
			if p.isArrayEnd() {
				break
			}
			v, err := p.decodeAny()
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if arr == nil {
			arr = []interface{}{}
		}
		return arr, nil
	case TokString:
		return tok.Str, nil
	case TokNumber:
		return tok.Num, nil
	case TokBool:
		return tok.Bool, nil
	case TokNull:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected token in value")
}

// GetRequest is the decoded form of an `Object/get` call.
type GetRequest struct {
	AccountID     string
	Ids           MaybeReference[[]string]
	HasIds        bool
	Properties    MaybeReference[[]string]
	HasProperties bool
	Object        MethodObject
	EmailArgs     *EmailGetArguments // non-nil only when Object == ObjEmail
}

// EmailGetArguments is the Email/get per-object argument extension.
type EmailGetArguments struct {
	BodyProperties       []string
	HasBodyProperties    bool
	FetchTextBodyValues  bool
	FetchHTMLBodyValues  bool
	FetchAllBodyValues   bool
	MaxBodyValueBytes    int
	HasMaxBodyValueBytes bool
}

func (p *parser) decodeGet(obj MethodObject) (RequestMethod, *MethodError) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	if tok.Kind != TokDictStart {
		return nil, invalidArgumentsError("Get arguments must be an object")
	}

	req := &GetRequest{Object: obj}
	var emailArgs EmailGetArguments

	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return nil, invalidArgumentsError(err.Error())
		}
		isRef := len(key) > 0 && key[len(key)-1] == '#'
		lookupKey := key
		if isRef {
			lookupKey = key[:len(key)-1]
		}
		hash, hashErr := packKey(lookupKey)

		switch {
		case hashErr == nil && hash == keyAccountID && !isRef:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("accountId must be a string")
			}
			req.AccountID = t.Str

		case hashErr == nil && hash == keyIds:
			ref, err := p.decodeStringArrayOrRef(isRef)
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Ids = ref
			req.HasIds = true

		case hashErr == nil && hash == keyProperties:
			ref, err := p.decodeStringArrayOrRef(isRef)
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Properties = ref
			req.HasProperties = true

		case obj == ObjEmail && hashErr == nil && hash == keyBodyProperties && !isRef:
			ref, err := p.decodeStringArrayOrRef(false)
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			emailArgs.BodyProperties = ref.Literal
			emailArgs.HasBodyProperties = true

		case obj == ObjEmail && hashErr == nil && hash == keyFetchTextBodyValues && !isRef:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokBool {
				return nil, invalidArgumentsError("fetchTextBodyValues must be a bool")
			}
			emailArgs.FetchTextBodyValues = t.Bool

		case obj == ObjEmail && hashErr == nil && hash == keyFetchHTMLBodyValues && !isRef:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokBool {
				return nil, invalidArgumentsError("fetchHTMLBodyValues must be a bool")
			}
			emailArgs.FetchHTMLBodyValues = t.Bool

		case obj == ObjEmail && hashErr == nil && hash == keyFetchAllBodyValues && !isRef:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokBool {
				return nil, invalidArgumentsError("fetchAllBodyValues must be a bool")
			}
			emailArgs.FetchAllBodyValues = t.Bool

		case obj == ObjEmail && hashErr == nil && hash == keyMaxBodyValueBytes && !isRef:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokNumber {
				return nil, invalidArgumentsError("maxBodyValueBytes must be a number")
			}
			emailArgs.MaxBodyValueBytes = int(t.Num)
			emailArgs.HasMaxBodyValueBytes = true

		default:
			// Unknown key: the per-object argument parser declined it, so
			// the generic skipper consumes it.
			if err := p.skipValue(); err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
		}
	}

	if obj == ObjEmail {
		req.EmailArgs = &emailArgs
	}
	return req, nil
}

// QueryRequest is the decoded form of an `Object/query` call. Filter and
// Sort are kept as raw JSON: their shapes are per-object (FilterOperator,
// FilterCondition, Comparator) and evaluating them is the method
// executor's job, not the parser's.
type QueryRequest struct {
	AccountID      string
	Filter         json.RawMessage
	Sort           json.RawMessage
	Position       int
	Anchor         string
	HasAnchor      bool
	AnchorOffset   int
	Limit          int
	HasLimit       bool
	CalculateTotal bool
	Object         MethodObject
}

func (p *parser) decodeQuery(obj MethodObject) (RequestMethod, *MethodError) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	if tok.Kind != TokDictStart {
		return nil, invalidArgumentsError("Query arguments must be an object")
	}
	req := &QueryRequest{Object: obj}

	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return nil, invalidArgumentsError(err.Error())
		}
		hash, hashErr := packKey(key)
		switch {
		case hashErr == nil && hash == keyAccountID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("accountId must be a string")
			}
			req.AccountID = t.Str
		case hashErr == nil && hash == keyFilter:
			raw, err := p.captureRawValue()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Filter = raw
		case hashErr == nil && hash == keySort:
			raw, err := p.captureRawValue()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Sort = raw
		case hashErr == nil && hash == keyPosition:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokNumber {
				return nil, invalidArgumentsError("position must be a number")
			}
			req.Position = int(t.Num)
		case hashErr == nil && hash == keyAnchor:
			t, err := p.nextToken()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			if t.Kind == TokString {
				req.Anchor = t.Str
				req.HasAnchor = true
			}
		case hashErr == nil && hash == keyAnchorOffset:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokNumber {
				return nil, invalidArgumentsError("anchorOffset must be a number")
			}
			req.AnchorOffset = int(t.Num)
		case hashErr == nil && hash == keyLimit:
			t, err := p.nextToken()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			if t.Kind == TokNumber {
				req.Limit = int(t.Num)
				req.HasLimit = true
			}
		case hashErr == nil && hash == keyCalcTotal:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokBool {
				return nil, invalidArgumentsError("calculateTotal must be a bool")
			}
			req.CalculateTotal = t.Bool
		default:
			if err := p.skipValue(); err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
		}
	}
	return req, nil
}

// SetRequest is the decoded form of an `Object/set` call. Create/Update/
// Destroy payloads are per-object-specific and kept as raw JSON.
type SetRequest struct {
	AccountID    string
	IfInState    string
	HasIfInState bool
	Create       json.RawMessage
	Update       json.RawMessage
	Destroy      MaybeReference[[]string]
	HasDestroy   bool
	Object       MethodObject
}

func (p *parser) decodeSet(obj MethodObject) (RequestMethod, *MethodError) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	if tok.Kind != TokDictStart {
		return nil, invalidArgumentsError("Set arguments must be an object")
	}
	req := &SetRequest{Object: obj}
	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return nil, invalidArgumentsError(err.Error())
		}
		isRef := len(key) > 0 && key[len(key)-1] == '#'
		lookupKey := key
		if isRef {
			lookupKey = key[:len(key)-1]
		}
		hash, hashErr := packKey(lookupKey)
		switch {
		case hashErr == nil && hash == keyAccountID && !isRef:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("accountId must be a string")
			}
			req.AccountID = t.Str
		case hashErr == nil && hash == keyIfInState && !isRef:
			t, err := p.nextToken()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			if t.Kind == TokString {
				req.IfInState = t.Str
				req.HasIfInState = true
			}
		case hashErr == nil && hash == keyCreate && !isRef:
			raw, err := p.captureRawValue()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Create = raw
		case hashErr == nil && hash == keyUpdate && !isRef:
			raw, err := p.captureRawValue()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Update = raw
		case hashErr == nil && hash == keyDestroy:
			ref, err := p.decodeStringArrayOrRef(isRef)
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Destroy = ref
			req.HasDestroy = true
		default:
			if err := p.skipValue(); err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
		}
	}
	return req, nil
}

// ChangesRequest is the decoded form of an `Object/changes` call.
type ChangesRequest struct {
	AccountID     string
	SinceState    string
	MaxChanges    int
	HasMaxChanges bool
	Object        MethodObject
}

func (p *parser) decodeChanges(obj MethodObject) (RequestMethod, *MethodError) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	if tok.Kind != TokDictStart {
		return nil, invalidArgumentsError("Changes arguments must be an object")
	}
	req := &ChangesRequest{Object: obj}
	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return nil, invalidArgumentsError(err.Error())
		}
		hash, hashErr := packKey(key)
		switch {
		case hashErr == nil && hash == keyAccountID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("accountId must be a string")
			}
			req.AccountID = t.Str
		case hashErr == nil && hash == keySinceState:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("sinceState must be a string")
			}
			req.SinceState = t.Str
		case hashErr == nil && hash == keyMaxChanges:
			t, err := p.nextToken()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			if t.Kind == TokNumber {
				req.MaxChanges = int(t.Num)
				req.HasMaxChanges = true
			}
		default:
			if err := p.skipValue(); err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
		}
	}
	return req, nil
}

// QueryChangesRequest is the decoded form of an `Object/queryChanges` call.
type QueryChangesRequest struct {
	AccountID       string
	Filter          json.RawMessage
	Sort            json.RawMessage
	SinceQueryState string
	MaxChanges      int
	HasMaxChanges   bool
	UpToID          string
	HasUpToID       bool
	CalculateTotal  bool
	Object          MethodObject
}

func (p *parser) decodeQueryChanges(obj MethodObject) (RequestMethod, *MethodError) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	if tok.Kind != TokDictStart {
		return nil, invalidArgumentsError("QueryChanges arguments must be an object")
	}
	req := &QueryChangesRequest{Object: obj}
	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return nil, invalidArgumentsError(err.Error())
		}
		hash, hashErr := packKey(key)
		switch {
		case hashErr == nil && hash == keyAccountID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("accountId must be a string")
			}
			req.AccountID = t.Str
		case hashErr == nil && hash == keyFilter:
			raw, err := p.captureRawValue()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Filter = raw
		case hashErr == nil && hash == keySort:
			raw, err := p.captureRawValue()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Sort = raw
		case hashErr == nil && hash == keySinceQueryState:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("sinceQueryState must be a string")
			}
			req.SinceQueryState = t.Str
		case hashErr == nil && hash == keyMaxChanges:
			t, err := p.nextToken()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			if t.Kind == TokNumber {
				req.MaxChanges = int(t.Num)
				req.HasMaxChanges = true
			}
		case hashErr == nil && hash == keyUpToID:
			t, err := p.nextToken()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			if t.Kind == TokString {
				req.UpToID = t.Str
				req.HasUpToID = true
			}
		case hashErr == nil && hash == keyCalcTotal:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokBool {
				return nil, invalidArgumentsError("calculateTotal must be a bool")
			}
			req.CalculateTotal = t.Bool
		default:
			if err := p.skipValue(); err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
		}
	}
	return req, nil
}

// CopyRequest is the decoded form of `Email/copy`.
type CopyRequest struct {
	FromAccountID            string
	AccountID                string
	Create                   json.RawMessage
	OnSuccessDestroyOriginal bool
	DestroyFromIfInState     string
	HasDestroyFromIfInState  bool
}

func (p *parser) decodeCopy() (RequestMethod, *MethodError) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	if tok.Kind != TokDictStart {
		return nil, invalidArgumentsError("Copy arguments must be an object")
	}
	req := &CopyRequest{}
	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return nil, invalidArgumentsError(err.Error())
		}
		hash, hashErr := packKey(key)
		switch {
		case hashErr == nil && hash == keyFromAccountID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("fromAccountId must be a string")
			}
			req.FromAccountID = t.Str
		case hashErr == nil && hash == keyAccountID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("accountId must be a string")
			}
			req.AccountID = t.Str
		case hashErr == nil && hash == keyCreate:
			raw, err := p.captureRawValue()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Create = raw
		case hashErr == nil && hash == keyOnSuccessDestroyOriginal:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokBool {
				return nil, invalidArgumentsError("onSuccessDestroyOriginal must be a bool")
			}
			req.OnSuccessDestroyOriginal = t.Bool
		case hashErr == nil && hash == keyDestroyFromIfInState:
			t, err := p.nextToken()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			if t.Kind == TokString {
				req.DestroyFromIfInState = t.Str
				req.HasDestroyFromIfInState = true
			}
		default:
			if err := p.skipValue(); err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
		}
	}
	return req, nil
}

// CopyBlobRequest is the decoded form of `Blob/copy`.
type CopyBlobRequest struct {
	FromAccountID string
	AccountID     string
	BlobIds       []string
}

func (p *parser) decodeCopyBlob() (RequestMethod, *MethodError) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	if tok.Kind != TokDictStart {
		return nil, invalidArgumentsError("CopyBlob arguments must be an object")
	}
	req := &CopyBlobRequest{}
	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return nil, invalidArgumentsError(err.Error())
		}
		hash, hashErr := packKey(key)
		switch {
		case hashErr == nil && hash == keyFromAccountID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("fromAccountId must be a string")
			}
			req.FromAccountID = t.Str
		case hashErr == nil && hash == keyAccountID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("accountId must be a string")
			}
			req.AccountID = t.Str
		case hashErr == nil && hash == keyBlobIds:
			ref, err := p.decodeStringArrayOrRef(false)
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.BlobIds = ref.Literal
		default:
			if err := p.skipValue(); err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
		}
	}
	return req, nil
}

// ImportEmailRequest is the decoded form of `Email/import`. Emails is kept
// raw: its value shape (blobId, mailboxIds, keywords, receivedAt per entry)
// is per-object business logic.
type ImportEmailRequest struct {
	AccountID string
	Emails    json.RawMessage
}

func (p *parser) decodeImportEmail() (RequestMethod, *MethodError) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	if tok.Kind != TokDictStart {
		return nil, invalidArgumentsError("Import arguments must be an object")
	}
	req := &ImportEmailRequest{}
	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return nil, invalidArgumentsError(err.Error())
		}
		hash, hashErr := packKey(key)
		switch {
		case hashErr == nil && hash == keyAccountID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("accountId must be a string")
			}
			req.AccountID = t.Str
		case hashErr == nil && hash == keyEmails:
			raw, err := p.captureRawValue()
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.Emails = raw
		default:
			if err := p.skipValue(); err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
		}
	}
	if err := validateImportEmailArguments(req); err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	return req, nil
}

// ParseEmailRequest is the decoded form of `Email/parse`.
type ParseEmailRequest struct {
	AccountID string
	BlobIds   []string
}

func (p *parser) decodeParseEmail() (RequestMethod, *MethodError) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	if tok.Kind != TokDictStart {
		return nil, invalidArgumentsError("Parse arguments must be an object")
	}
	req := &ParseEmailRequest{}
	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return nil, invalidArgumentsError(err.Error())
		}
		hash, hashErr := packKey(key)
		switch {
		case hashErr == nil && hash == keyAccountID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("accountId must be a string")
			}
			req.AccountID = t.Str
		case hashErr == nil && hash == keyBlobIds:
			ref, err := p.decodeStringArrayOrRef(false)
			if err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
			req.BlobIds = ref.Literal
		default:
			if err := p.skipValue(); err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
		}
	}
	return req, nil
}

// ValidateSieveScriptRequest is the decoded form of `SieveScript/validate`.
type ValidateSieveScriptRequest struct {
	AccountID string
	BlobID    string
}

func (p *parser) decodeValidateSieveScript() (RequestMethod, *MethodError) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	if tok.Kind != TokDictStart {
		return nil, invalidArgumentsError("Validate arguments must be an object")
	}
	req := &ValidateSieveScriptRequest{}
	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return nil, invalidArgumentsError(err.Error())
		}
		hash, hashErr := packKey(key)
		switch {
		case hashErr == nil && hash == keyAccountID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("accountId must be a string")
			}
			req.AccountID = t.Str
		case hashErr == nil && hash == keyBlobID:
			t, err := p.nextToken()
			if err != nil || t.Kind != TokString {
				return nil, invalidArgumentsError("blobId must be a string")
			}
			req.BlobID = t.Str
		default:
			if err := p.skipValue(); err != nil {
				return nil, invalidArgumentsError(err.Error())
			}
		}
	}
	if err := validateSieveScriptArguments(req); err != nil {
		return nil, invalidArgumentsError(err.Error())
	}
	return req, nil
}
