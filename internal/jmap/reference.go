package jmap

import "fmt"

// ResultReference points into a prior call's response by JSON pointer,
// enabling pipelined batches. Resolution against the
// actual prior response is the method executor's job, not the parser's:
// the parser only records the reference.
type ResultReference struct {
	ResultOf string
	Path     string
	Name     string
}

// MaybeReference is either a literal value of type V or a ResultReference.
// Go has no native sum type, so — following the same tagged-union-via-
// struct idiom used for RequestMethod — exactly one of the two fields is
// populated, indicated by IsRef.
type MaybeReference[V any] struct {
	IsRef     bool
	Literal   V
	Reference ResultReference
}

// decodeResultReference reads a {resultOf, path, name} object. The caller
// has already consumed the TokDictStart.
func (p *parser) decodeResultReference() (ResultReference, error) {
	var ref ResultReference
	for {
		if p.isDictEnd() {
			break
		}
		key, err := p.nextDictKeyRaw()
		if err != nil {
			return ref, err
		}
		hash, hashErr := packKey(key)
		switch {
		case hashErr == nil && hash == keyResultOf:
			tok, err := p.nextToken()
			if err != nil {
				return ref, err
			}
			if tok.Kind != TokString {
				return ref, fmt.Errorf("resultOf: expected string")
			}
			ref.ResultOf = tok.Str
		case hashErr == nil && hash == keyPath:
			tok, err := p.nextToken()
			if err != nil {
				return ref, err
			}
			if tok.Kind != TokString {
				return ref, fmt.Errorf("path: expected string")
			}
			ref.Path = tok.Str
		case hashErr == nil && hash == keyName:
			tok, err := p.nextToken()
			if err != nil {
				return ref, err
			}
			if tok.Kind != TokString {
				return ref, fmt.Errorf("name: expected string")
			}
			ref.Name = tok.Str
		default:
			if err := p.skipValue(); err != nil {
				return ref, err
			}
		}
	}
	return ref, nil
}

// decodeStringArrayOrRef decodes a field that is either a literal array of
// strings (e.g. Ids, Properties) or, when the matching "#propName" key is
// seen instead, a ResultReference. The caller passes isRefKey true when the
// current key ended in '#'.
func (p *parser) decodeStringArrayOrRef(isRefKey bool) (MaybeReference[[]string], error) {
	var out MaybeReference[[]string]
	if isRefKey {
		tok, err := p.nextToken()
		if err != nil {
			return out, err
		}
		if tok.Kind != TokDictStart {
			return out, fmt.Errorf("expected object for result reference")
		}
		ref, err := p.decodeResultReference()
		if err != nil {
			return out, err
		}
		out.IsRef = true
		out.Reference = ref
		return out, nil
	}

	tok, err := p.nextToken()
	if err != nil {
		return out, err
	}
	if tok.Kind == TokNull {
		return out, nil
	}
	if tok.Kind != TokArrayStart {
		return out, fmt.Errorf("expected array of strings")
	}
	var vals []string
	for {
		if p.isArrayEnd() {
			break
		}
		v, err := p.nextToken()
		if err != nil {
			return out, err
		}
		if v.Kind != TokString {
			return out, fmt.Errorf("expected string element")
		}
		vals = append(vals, v.Str)
	}
	out.Literal = vals
	return out, nil
}
