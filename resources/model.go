package resources

import (
	"fmt"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/pkg/ensemble"
	"github.com/activecm/flowguard/pkg/features"
	"github.com/activecm/flowguard/pkg/inference"
	"github.com/activecm/flowguard/pkg/normalizer"
)

// LoadModel reads the preprocessing and classifier artifacts named in conf
// and checks that they describe the same feature vector
func LoadModel(conf *config.Config) (*Model, error) {
	featureConf, err := features.Load(conf.S.Model.PreprocessingPath)
	if err != nil {
		return nil, err
	}

	norm, err := normalizer.New(featureConf)
	if err != nil {
		return nil, err
	}

	classifier, err := ensemble.Load(conf.S.Model.ClassifierPath)
	if err != nil {
		return nil, err
	}

	labels, err := inference.NewLabelTable(conf.R.Model.Convention, featureConf.Labels)
	if err != nil {
		return nil, err
	}

	if err := checkCompatible(norm, classifier, labels); err != nil {
		return nil, err
	}

	return &Model{
		Features:   featureConf,
		Classifier: classifier,
		Labels:     labels,
		normalizer: norm,
	}, nil
}

func checkCompatible(norm *normalizer.Normalizer, classifier *ensemble.Model, labels *inference.LabelTable) error {
	columns := norm.Columns()
	trained := classifier.FeatureNames()
	if len(columns) != len(trained) {
		return fmt.Errorf(
			"preprocessing produces %d columns but the classifier was trained on %d",
			len(columns), len(trained),
		)
	}
	for i := range columns {
		if columns[i] != trained[i] {
			return fmt.Errorf(
				"column %d is %s after preprocessing but %s in the classifier",
				i, columns[i], trained[i],
			)
		}
	}

	if classifier.NumClasses() != labels.Len() {
		return fmt.Errorf(
			"classifier scores %d classes but the %s label table has %d",
			classifier.NumClasses(), labels.Convention(), labels.Len(),
		)
	}
	return nil
}
