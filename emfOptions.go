package uow

// EMFOptions customize the EMF (CloudWatch embedded metric format)
// serializer.
type EMFOptions struct {

	// Namespace is the CloudWatch namespace carried in the metric
	// directive. The default is "UnitOfWork".
	Namespace string

	// Dimensions lists the dimension sets, each a list of property
	// keys. Every listed key must appear as a string property on the
	// serialized entry; a missing key is a validation error and the
	// entry is dropped.
	Dimensions [][]string

	// Sampling enables multiplicity encoding: metrics carrying a
	// sampling multiplicity serialize as {"Values":[v],"Counts":[m]}
	// so aggregation weighs them back up to the full population.
	Sampling bool

	// StorageResolution, when set to 1, marks every metric as
	// high-resolution in the directive. Any other value leaves the
	// default (60s) resolution.
	StorageResolution int
}

const defaultNamespace = "UnitOfWork"

// DefaultEMFOptions returns *EMFOptions with all default values.
func DefaultEMFOptions() *EMFOptions {
	return &EMFOptions{Namespace: defaultNamespace}
}

// resolve ensures that all options have valid values.
func (o *EMFOptions) resolve() {
	if o.Namespace == "" {
		o.Namespace = defaultNamespace
	}
	if o.StorageResolution != 1 {
		o.StorageResolution = 0
	}
}
