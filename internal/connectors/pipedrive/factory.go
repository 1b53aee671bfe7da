package pipedrive

// Factory builds clients that share the same options, one per connection.
type Factory struct {
	opts []Option
}

func NewFactory(opts ...Option) *Factory {
	return &Factory{opts: opts}
}

// New returns a client for one connection's token and api domain.
func (f *Factory) New(accessToken, apiDomain string) *Client {
	return NewClient(accessToken, apiDomain, f.opts...)
}
