package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"deepresearch/internal/logging"
)

var validate = validator.New()

// GenerateStructured asks the provider for a value of type T, degrading
// through an ordered recovery chain on malformed output:
//
//  1. natively JSON-constrained request, strict decode;
//  2. re-ask with machine-readable format instructions, strict decode;
//  3. scan the raw text for balanced {...}/[...] candidates, decode each
//     independently, merge object keys (top-level lists go to the first
//     list-typed field of T);
//  4. field-level recovery: for slice-of-struct fields, keep only the
//     elements that validate on their own;
//  5. the minimal instance of T (slice fields non-nil and empty).
//
// Only transport/provider errors are returned; once a response has been
// received, malformed content can never surface as an error.
func GenerateStructured[T any](ctx context.Context, f *Facade, prompt string) (T, error) {
	// Stage 1: native JSON mode.
	raw, supported, err := f.completeJSON(ctx, prompt)
	if supported {
		if err != nil {
			return minimalInstance[T](), err
		}
		if out, ok := decodeStrict[T](raw); ok {
			return out, nil
		}
		logging.LLMDebug("native JSON decode failed, re-asking with format instructions")
	}

	// Stage 2: free text with appended format instructions.
	raw, err = f.GenerateText(ctx, prompt+"\n\n"+formatInstructions[T]())
	if err != nil {
		return minimalInstance[T](), err
	}
	if out, ok := decodeStrict[T](raw); ok {
		return out, nil
	}

	// Stages 3-5 never fail.
	logging.LLM("structured decode failed, entering recovery (response %d chars)", len(raw))
	return robustExtract[T](raw), nil
}

// decodeStrict unmarshals raw into T and accepts the result only if it
// passes full schema validation.
func decodeStrict[T any](raw string) (T, bool) {
	var out T
	candidate := raw
	if !json.Valid([]byte(candidate)) {
		// Providers love markdown fences; strip to the first balanced
		// candidate before giving up.
		if c := firstBalanced(raw); c != "" {
			candidate = c
		}
	}
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		var zero T
		return zero, false
	}
	if err := validate.Struct(out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// robustExtract recovers whatever validates from malformed raw text.
// It always returns a usable instance of T and never fails.
func robustExtract[T any](raw string) T {
	merged := make(map[string]json.RawMessage)
	listFields := listFieldNames[T]()
	listTaken := make(map[string]bool)

	for _, candidate := range balancedCandidates(raw) {
		var probe interface{}
		if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
			continue
		}
		switch probe.(type) {
		case map[string]interface{}:
			var obj map[string]json.RawMessage
			if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
				continue
			}
			for k, v := range obj {
				if _, exists := merged[k]; !exists {
					merged[k] = v
				}
			}
		case []interface{}:
			// A bare list is assigned to the first list-typed field of T
			// that has not been claimed yet.
			for _, name := range listFields {
				if _, exists := merged[name]; !exists && !listTaken[name] {
					merged[name] = json.RawMessage(candidate)
					listTaken[name] = true
					break
				}
			}
		}
	}

	if len(merged) == 0 {
		return minimalInstance[T]()
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return minimalInstance[T]()
	}
	out := minimalInstance[T]()
	if err := json.Unmarshal(data, &out); err != nil {
		return minimalInstance[T]()
	}
	if err := validate.Struct(out); err == nil {
		return out
	}

	// Field-level recovery: keep only the list elements that validate on
	// their own, drop the rest.
	return filterInvalidElements(out)
}

// filterInvalidElements walks T's slice-of-struct fields and drops
// elements that fail their own validation.
func filterInvalidElements[T any](out T) T {
	v := reflect.ValueOf(&out).Elem()
	if v.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() != reflect.Slice || !field.CanSet() {
			continue
		}
		elemType := field.Type().Elem()
		if elemType.Kind() != reflect.Struct {
			continue
		}
		kept := reflect.MakeSlice(field.Type(), 0, field.Len())
		for j := 0; j < field.Len(); j++ {
			if err := validate.Struct(field.Index(j).Interface()); err == nil {
				kept = reflect.Append(kept, field.Index(j))
			}
		}
		field.Set(kept)
	}
	return out
}

// minimalInstance returns the zero value of T with every slice field set
// to a non-nil empty slice.
func minimalInstance[T any]() T {
	var out T
	v := reflect.ValueOf(&out).Elem()
	if v.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Slice && field.CanSet() && field.IsNil() {
			field.Set(reflect.MakeSlice(field.Type(), 0, 0))
		}
	}
	return out
}

// listFieldNames returns the JSON names of T's slice-typed fields, in
// declaration order.
func listFieldNames[T any]() []string {
	var names []string
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() != reflect.Slice {
			continue
		}
		names = append(names, jsonFieldName(f))
	}
	return names
}

func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return f.Name
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "" {
		return f.Name
	}
	return tag
}

// formatInstructions renders a machine-readable shape description of T for
// prompt-level constraining.
func formatInstructions[T any]() string {
	var sb strings.Builder
	sb.WriteString("Respond with ONLY a JSON object, no prose and no markdown fences, matching exactly this shape:\n")
	sb.WriteString(jsonSkeleton(reflect.TypeOf((*T)(nil)).Elem(), 0))
	return sb.String()
}

func jsonSkeleton(t reflect.Type, depth int) string {
	if depth > 4 {
		return `"..."`
	}
	switch t.Kind() {
	case reflect.Struct:
		var sb strings.Builder
		sb.WriteString("{")
		first := true
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" {
				continue // unexported
			}
			if !first {
				sb.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&sb, "%q: %s", jsonFieldName(f), jsonSkeleton(f.Type, depth+1))
		}
		sb.WriteString("}")
		return sb.String()
	case reflect.Slice:
		return "[" + jsonSkeleton(t.Elem(), depth+1) + "]"
	case reflect.Map:
		return "{" + `"key": ` + jsonSkeleton(t.Elem(), depth+1) + "}"
	case reflect.String:
		return `"string"`
	case reflect.Bool:
		return "true"
	case reflect.Float32, reflect.Float64:
		return "0.0"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "0"
	case reflect.Ptr:
		return jsonSkeleton(t.Elem(), depth+1)
	default:
		return "null"
	}
}
