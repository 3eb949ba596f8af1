package httpclient

const defaultBodyLogLimit = 1024

type (
	reqOptBuilder struct {
		setters []func(*reqOpt)
	}

	// reqOpt controls what a single Do call writes to the log.
	reqOpt struct {
		canLog                      bool
		canLogRequestBody           bool
		canLogResponseBody          bool
		canLogRequestBodyOnlyError  bool
		canLogResponseBodyOnlyError bool
		bodyLogLimit                int
		loggedRequestKeys           []string
		loggedResponseKeys          []string
		loggedRequestHeaders        []string
		maskedQueryParamKeys        []string
	}
)

func ReqOptBuilder() *reqOptBuilder {
	return &reqOptBuilder{}
}

func (b *reqOptBuilder) set(setter func(*reqOpt)) *reqOptBuilder {
	b.setters = append(b.setters, setter)
	return b
}

func (b *reqOptBuilder) Log() *reqOptBuilder {
	return b.set(func(ro *reqOpt) { ro.canLog = true })
}

func (b *reqOptBuilder) LogReqBody() *reqOptBuilder {
	return b.set(func(ro *reqOpt) { ro.canLogRequestBody = true })
}

func (b *reqOptBuilder) LogResBody() *reqOptBuilder {
	return b.set(func(ro *reqOpt) { ro.canLogResponseBody = true })
}

// LogReqBodyOnlyError logs the request body when the call fails or the
// server answers 4xx/5xx.
func (b *reqOptBuilder) LogReqBodyOnlyError() *reqOptBuilder {
	return b.set(func(ro *reqOpt) { ro.canLogRequestBodyOnlyError = true })
}

func (b *reqOptBuilder) LogResBodyOnlyError() *reqOptBuilder {
	return b.set(func(ro *reqOpt) { ro.canLogResponseBodyOnlyError = true })
}

// BodyLogLimit caps the logged part of a body. Bodies are never buffered
// beyond it for logging.
func (b *reqOptBuilder) BodyLogLimit(n int) *reqOptBuilder {
	return b.set(func(ro *reqOpt) { ro.bodyLogLimit = n })
}

// LoggedReqKeys limits a logged JSON request body to the given top-level keys.
func (b *reqOptBuilder) LoggedReqKeys(keys []string) *reqOptBuilder {
	return b.set(func(ro *reqOpt) { ro.loggedRequestKeys = keys })
}

// LoggedResKeys limits a logged JSON response body to the given top-level keys.
func (b *reqOptBuilder) LoggedResKeys(keys []string) *reqOptBuilder {
	return b.set(func(ro *reqOpt) { ro.loggedResponseKeys = keys })
}

// LoggedReqHeaders logs the named request headers. Credentials are masked.
func (b *reqOptBuilder) LoggedReqHeaders(names ...string) *reqOptBuilder {
	return b.set(func(ro *reqOpt) { ro.loggedRequestHeaders = names })
}

func (b *reqOptBuilder) MaskedQueryParamKeys(keys []string) *reqOptBuilder {
	return b.set(func(ro *reqOpt) { ro.maskedQueryParamKeys = keys })
}

func (b *reqOptBuilder) Build() *reqOpt {
	opt := &reqOpt{bodyLogLimit: defaultBodyLogLimit}
	for _, setter := range b.setters {
		setter(opt)
	}
	if opt.bodyLogLimit <= 0 {
		opt.bodyLogLimit = defaultBodyLogLimit
	}
	return opt
}
