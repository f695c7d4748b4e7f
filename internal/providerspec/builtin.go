package providerspec

import "sort"

var builtinSpecs = map[string]Spec{
	"ark": {
		Key:     "ark",
		Aliases: []string{"doubao", "volcengine", "volces"},
		API: &APISpec{
			Protocol:           ProtocolOpenAIChatCompletions,
			DefaultBaseURL:     "https://ark.cn-beijing.volces.com/api/v3",
			DefaultPath:        "/chat/completions",
			DefaultAPIKeyEnv:   "ARK_API_KEY",
			DefaultModel:       "doubao-seed-1-6-251015",
			ProviderOptionsKey: "ark",
		},
	},
	"openai": {
		Key: "openai",
		API: &APISpec{
			Protocol:           ProtocolOpenAIChatCompletions,
			DefaultBaseURL:     "https://api.openai.com",
			DefaultPath:        "/v1/chat/completions",
			DefaultAPIKeyEnv:   "OPENAI_API_KEY",
			DefaultModel:       "gpt-4o-mini",
			ProviderOptionsKey: "openai",
		},
	},
	"google": {
		Key:     "google",
		Aliases: []string{"gemini", "google_ai_studio"},
		API: &APISpec{
			Protocol:           ProtocolGoogleGenerateContent,
			DefaultAPIKeyEnv:   "GEMINI_API_KEY",
			DefaultModel:       "gemini-2.0-flash",
			ProviderOptionsKey: "google",
		},
	},
}

func Builtin(key string) (Spec, bool) {
	s, ok := builtinSpecs[CanonicalProviderKey(key)]
	if !ok {
		return Spec{}, false
	}
	return cloneSpec(s), true
}

func Builtins() map[string]Spec {
	out := make(map[string]Spec, len(builtinSpecs))
	for key, spec := range builtinSpecs {
		out[key] = cloneSpec(spec)
	}
	return out
}

// Keys returns the canonical builtin provider keys in sorted order.
func Keys() []string {
	out := make([]string, 0, len(builtinSpecs))
	for k := range builtinSpecs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneSpec(in Spec) Spec {
	out := in
	if in.API != nil {
		api := *in.API
		out.API = &api
	}
	out.Aliases = append([]string{}, in.Aliases...)
	return out
}
